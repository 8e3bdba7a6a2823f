package routes

import (
	"change-detector/internal/myhttp"
	"change-detector/internal/storage"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
)

type ArtifactResponse struct {
	URL  string `json:"url"`
	Data string `json:"data"`
}

// GetArtifact returns the stored object named by the url query parameter,
// base64 encoded.
func GetArtifact(storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		data, err := storageClient.Get(r.Context(), url)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			myhttp.Logger(r.Context()).Error("failed to get artifact", "url", url, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		b, err := json.Marshal(ArtifactResponse{
			URL:  url,
			Data: base64.StdEncoding.EncodeToString(data),
		})
		if err != nil {
			myhttp.Logger(r.Context()).Error("failed to marshal json", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}
