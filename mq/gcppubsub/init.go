package gcppubsub

import (
	"errors"

	"billsplit/config"
)

func GetGCPProjectID() (string, error) {
	projectID := config.GetEnv("GCP_PROJECT_ID", "")
	if projectID == "" {
		return "", errors.New("GCP_PROJECT_ID environment variable must be set")
	}
	return projectID, nil
}
