package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "go-scan-capture/internal/errors"
)

// ShotStore persists accepted capture shots. SaveShot returns the stable URL
// of the stored blob.
type ShotStore interface {
	SaveShot(ctx context.Context, sessionID, stepID string, data []byte) (string, error)
	GetShot(ctx context.Context, sessionID, stepID string) ([]byte, error)
}

type azureShotStore struct {
	client      *azblob.Client
	accountName string
	container   string
}

// NewAzureShotStore stores shots as PNG blobs named
// <sessionID>/<stepID>.png in the given container.
func NewAzureShotStore(accountName, accountKey, container string) (ShotStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &azureShotStore{client: client, accountName: accountName, container: container}, nil
}

func (s *azureShotStore) SaveShot(ctx context.Context, sessionID, stepID string, data []byte) (string, error) {
	blobName := shotBlobName(sessionID, stepID)
	if _, err := s.client.UploadBuffer(ctx, s.container, blobName, data, nil); err != nil {
		return "", apperrors.NewNetworkError("shot upload failed", err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.accountName, s.container, blobName), nil
}

func (s *azureShotStore) GetShot(ctx context.Context, sessionID, stepID string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, shotBlobName(sessionID, stepID), nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("shot download failed", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, apperrors.NewNetworkError("shot download interrupted", err)
	}
	return buf.Bytes(), nil
}

func shotBlobName(sessionID, stepID string) string {
	return fmt.Sprintf("%s/%s.png", sessionID, stepID)
}

// NoopShotStore discards shots, for deployments without blob storage
// configured. Shots still live in the session for the duration of the scan.
type NoopShotStore struct{}

func (NoopShotStore) SaveShot(ctx context.Context, sessionID, stepID string, data []byte) (string, error) {
	return "", nil
}

func (NoopShotStore) GetShot(ctx context.Context, sessionID, stepID string) ([]byte, error) {
	return nil, apperrors.NewNotFoundError("shot storage is not configured", nil)
}
