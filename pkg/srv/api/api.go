/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// go-vbus API
//
// RESTful APIs to read the latest VBus data collected by go-vbus
//
//	Schemes: http
//	Host: localhost:8000
//	BasePath: /api
//	Version: 1.0.0
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
// swagger:meta
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"greenlab.dev/go-vbus/pkg/config"
	"greenlab.dev/go-vbus/pkg/dataset"
	"greenlab.dev/go-vbus/pkg/layers"
	"greenlab.dev/go-vbus/pkg/log"
	"greenlab.dev/go-vbus/pkg/report"
	"greenlab.dev/go-vbus/pkg/store"
)

//go:embed swagger.json
var swaggerJSON []byte

// DataSource is satisfied by *store.State
type DataSource interface {
	GetDataSet() (*dataset.DataSet, error)
	GetData(id string) (layers.Data, error)
	Channels() ([]uint8, error)
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	source DataSource
	doc    *loads.Document
}

func NewApiServer(ctx context.Context, cfg *config.Config, source DataSource) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.Api.Address, cfg.Api.Port)
	doc, err := loads.Analyzed(json.RawMessage(swaggerJSON), "")
	if err != nil {
		return nil, fmt.Errorf("load swagger spec: %w", err)
	}
	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		source:  source,
		doc:     doc,
	}
	s.configureRouter()
	return s, nil
}

// Handler returns the router wrapped with access logging and panic recovery
func (s *ApiServer) Handler() http.Handler {
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CombinedLoggingHandler(log.Writer(), s.Router))
}

// Run serves the API until the context is done
func (s *ApiServer) Run() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Api.Address, s.Config.Api.Port)
	log.Info("Starting API server: %s (docs at /docs)", addr)
	httpServer := &http.Server{
		Handler: s.Handler(),
		Addr:    addr,
	}
	go func() {
		<-s.Done()
		httpServer.Shutdown(context.Background())
	}()
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix(s.doc.BasePath()).Subrouter()
	// swagger:route GET /dataset dataset getDataSet
	subRouter.HandleFunc("/dataset", s.handleDataSet()).Methods("GET")
	// swagger:route GET /dataset/{id} dataset getData
	subRouter.HandleFunc("/dataset/{id}", s.handleData()).Methods("GET")
	// swagger:route GET /channels dataset getChannels
	subRouter.HandleFunc("/channels", s.handleChannels()).Methods("GET")

	s.Router.HandleFunc("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(swaggerJSON)
	}).Methods("GET")
	s.Router.Handle("/docs", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/swagger.json",
		Path:    "docs",
		Title:   s.doc.Spec().Info.Title,
	}, http.NotFoundHandler())).Methods("GET")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Unable to encode response: %s", err)
	}
}

func (s *ApiServer) handleDataSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling data set request")
		ds, err := s.source.GetDataSet()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, report.Entries(ds))
	}
}

func (s *ApiServer) handleData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		log.Debug("Handling data request: %s", id)
		d, err := s.source.GetData(id)
		var notFound store.ErrDataNotFound
		var noBucket store.ErrBucketNotFound
		switch {
		case errors.As(err, &notFound), errors.As(err, &noBucket):
			http.Error(w, fmt.Sprintf("Data %s not found", id), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, report.NewEntry(d))
	}
}

func (s *ApiServer) handleChannels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels, err := s.source.Channels()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		out := make([]int, len(channels))
		for i, channel := range channels {
			out[i] = int(channel)
		}
		writeJSON(w, out)
	}
}
