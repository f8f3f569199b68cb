package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/netsampler/intflow/decoders/intreport"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Config configures the HTTP server.
type Config struct {
	Addr        string
	CatalogPath string
}

// CatalogEntry describes a per-hop field as served on the catalog endpoint.
type CatalogEntry struct {
	Name          string `json:"name"`
	Group         string `json:"group"`
	Bit           uint8  `json:"bit"`
	Width         int    `json:"width"`
	AlwaysPresent bool   `json:"always_present,omitempty"`
}

func catalogEntries() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(intreport.Catalog))
	for _, f := range intreport.Catalog {
		group := "A"
		if f.Group == intreport.GroupB {
			group = "B"
		}
		entries = append(entries, CatalogEntry{
			Name:          f.Name,
			Group:         group,
			Bit:           f.Bit,
			Width:         f.Width,
			AlwaysPresent: f.AlwaysPresent,
		})
	}
	return entries
}

func writeBody(wr http.ResponseWriter, status int, body []byte) {
	wr.WriteHeader(status)
	if _, err := wr.Write(body); err != nil {
		log.WithError(err).Error("error writing HTTP")
	}
}

// HealthHandler returns a handler for the health endpoint.
func HealthHandler(isCollecting func() bool) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if !isCollecting() {
			writeBody(wr, http.StatusServiceUnavailable, []byte("Not OK\n"))
			return
		}
		writeBody(wr, http.StatusOK, []byte("OK\n"))
	}
}

// CatalogHandler serves the per-hop field catalog used to split metadata stacks.
func CatalogHandler() http.HandlerFunc {
	body, err := json.MarshalIndent(catalogEntries(), "", "  ")
	return func(wr http.ResponseWriter, r *http.Request) {
		if err != nil {
			log.WithError(err).Error("error writing JSON body for catalog")
			writeBody(wr, http.StatusInternalServerError, []byte("Internal Server Error\n"))
			return
		}
		wr.Header().Add("Content-Type", "application/json")
		writeBody(wr, http.StatusOK, body)
	}
}

// New constructs a mux with metrics, health, and catalog endpoints.
func New(cfg Config, isCollecting func() bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/__health", HealthHandler(isCollecting))
	if cfg.CatalogPath != "" {
		mux.HandleFunc(cfg.CatalogPath, CatalogHandler())
	}

	return mux
}
