package factory

import (
	"fmt"
	"net/http"
	"time"

	"go-scan-capture/internal/aiprovider"
	"go-scan-capture/internal/config"
	"go-scan-capture/internal/storage"
)

// StorageType represents different types of shot storage backends
type StorageType string

const (
	// AzureStorage persists shots to Azure blob storage
	AzureStorage StorageType = "azure"
	// NoopStorage discards shots, for deployments without blob storage
	NoopStorage StorageType = "noop"
)

// ProviderFactory creates AI providers by name
type ProviderFactory interface {
	CreateProvider(name aiprovider.Name) (aiprovider.Provider, error)
}

// StorageFactory creates shot storage implementations
type StorageFactory interface {
	CreateShotStore(storageType StorageType, cfg *config.Config) (storage.ShotStore, error)
}

type providerFactory struct {
	source config.Source
	httpc  *http.Client
}

// NewProviderFactory creates a new AI provider factory. Providers read their
// credentials from source on every call.
func NewProviderFactory(source config.Source, httpc *http.Client) ProviderFactory {
	if httpc == nil {
		httpc = &http.Client{Timeout: 120 * time.Second}
	}
	return &providerFactory{source: source, httpc: httpc}
}

// CreateProvider creates a provider based on the specified name
func (f *providerFactory) CreateProvider(name aiprovider.Name) (aiprovider.Provider, error) {
	switch name {
	case aiprovider.ProviderOpenAI:
		return aiprovider.NewOpenAIProvider(f.source, f.httpc), nil
	case aiprovider.ProviderGemini:
		return aiprovider.NewGeminiProvider(f.source), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", name)
	}
}

type storageFactory struct{}

// NewStorageFactory creates a new shot storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateShotStore creates a shot store based on the specified type
func (f *storageFactory) CreateShotStore(storageType StorageType, cfg *config.Config) (storage.ShotStore, error) {
	switch storageType {
	case AzureStorage:
		if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
			return nil, fmt.Errorf("azure storage requires account name and key")
		}
		return storage.NewAzureShotStore(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
	case NoopStorage:
		return storage.NoopShotStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ShotStoreForConfig picks the storage backend from configuration: Azure when
// credentials are present, noop otherwise.
func ShotStoreForConfig(cfg *config.Config) (storage.ShotStore, error) {
	f := NewStorageFactory()
	if cfg.AzureAccountName != "" && cfg.AzureAccountKey != "" {
		return f.CreateShotStore(AzureStorage, cfg)
	}
	return f.CreateShotStore(NoopStorage, cfg)
}
