package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/edulab/buildci/pkg/utils"
)

type ControlConfig struct {
	OrchestratorUri string `mapstructure:"orchestrator_uri"`
}

func ParseConfig() (*ControlConfig, error) {
	config := &ControlConfig{}
	if err := utils.UnmarshalConfig(*viper.GetViper(), config); err != nil {
		return nil, err
	}
	return config, nil
}

func DefaultDeadlineContext() (context.Context, func()) {
	return context.WithDeadline(context.Background(), time.Now().Add(time.Second*30))
}

func apiUrl(path string) string {
	return strings.TrimRight(configData.OrchestratorUri, "/") + path
}

func doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, apiUrl(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		data, _ := io.ReadAll(response.Body)
		return fmt.Errorf("%s: %s", response.Status, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(out)
}

func getJson(ctx context.Context, path string, out any) error {
	return doRequest(ctx, http.MethodGet, path, nil, out)
}

func postJson(ctx context.Context, path string, body, out any) error {
	return doRequest(ctx, http.MethodPost, path, body, out)
}

func deleteRequest(ctx context.Context, path string) error {
	return doRequest(ctx, http.MethodDelete, path, nil, nil)
}

func getText(ctx context.Context, path string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, apiUrl(path), nil)
	if err != nil {
		return "", err
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("%s: %s", response.Status, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}
