package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"parsikala_back_end/internal/database"
)

// GenerateSignedURL délivre une URL signée temporaire pour un objet du
// bucket. Accepte soit l'URL publique complète, soit le chemin de l'objet.
func GenerateSignedURL(ctx context.Context, objectPath string, duration time.Duration) (string, error) {
	bucket := os.Getenv("MINIO_BUCKET")
	prefix := fmt.Sprintf("://%s/%s/", os.Getenv("MINIO_ENDPOINT"), bucket)

	key := objectPath
	if idx := strings.Index(objectPath, prefix); idx >= 0 {
		key = objectPath[idx+len(prefix):]
	}

	presignedURL, err := database.MinIO.PresignedGetObject(ctx, bucket, key, duration, make(url.Values))
	if err != nil {
		return "", err
	}
	return presignedURL.String(), nil
}
