package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions turns configured credentials into client options. With no
// credentials the client falls back to application default credentials.
func ClientOptions(cfg ObjectStorageConfig) []option.ClientOption {
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}
