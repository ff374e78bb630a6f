package supabase

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

// ObjectStore is the subset of the storage client the rest of the service uses.
type ObjectStore interface {
	UploadFile(userID uuid.UUID, projectID uuid.NullUUID, filename, contentType string, data []byte) (string, string, error)
	DeleteProjectFiles(userID, projectID uuid.UUID) error
}

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// ObjectPath lays files out per user, then per project when there is one.
func ObjectPath(userID uuid.UUID, projectID uuid.NullUUID, filename string) string {
	if projectID.Valid {
		return fmt.Sprintf("users/%s/projects/%s/%s", userID.String(), projectID.UUID.String(), filename)
	}
	return fmt.Sprintf("users/%s/generations/%s", userID.String(), filename)
}

// UploadFile stores data and returns its storage path and public URL.
func (s *StorageClient) UploadFile(userID uuid.UUID, projectID uuid.NullUUID, filename, contentType string, data []byte) (string, string, error) {
	storagePath := ObjectPath(userID, projectID, filename)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}

	return storagePath, s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) DeleteProjectFiles(userID, projectID uuid.UUID) error {
	prefix := fmt.Sprintf("users/%s/projects/%s/", userID.String(), projectID.String())

	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	if len(files) > 0 {
		paths := make([]string, len(files))
		for i, file := range files {
			paths[i] = prefix + file.Name
		}
		if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
			return fmt.Errorf("failed to delete files: %w", err)
		}
	}

	return nil
}
