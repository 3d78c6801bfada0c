// Package rest implements coresync.NodeAdapter as an HTTP client
// against a catalog node's query/record/resource endpoints. Binary
// resource bodies are delegated to a pluggable resource.Backend, so a
// node can keep its bytes in S3/MinIO/R2 or on local disk without the
// core Job ever knowing which.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/catalogsync/replicator/internal/errors"
	"github.com/catalogsync/replicator/internal/models"
	"github.com/catalogsync/replicator/internal/resource"
	coresync "github.com/catalogsync/replicator/internal/sync"
)

var _ coresync.NodeAdapter = (*Adapter)(nil)

// Config configures one Adapter instance.
type Config struct {
	SystemName string
	BaseURL    string
	APIKey     string
	Backend    resource.Backend // nil means resources are fetched/pushed inline over HTTP
	HTTPClient *http.Client
}

// Adapter is the HTTP-backed coresync.NodeAdapter.
type Adapter struct {
	systemName string
	baseURL    string
	apiKey     string
	backend    resource.Backend
	httpClient *http.Client
}

// New constructs an Adapter from cfg.
func New(cfg Config) *Adapter {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		systemName: cfg.SystemName,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		backend:    cfg.Backend,
		httpClient: client,
	}
}

func (a *Adapter) SystemName() string { return a.systemName }

// IsAvailable probes the node's health endpoint.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	req, err := a.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// wireMetadata is the JSON shape of one record over the wire.
type wireMetadata struct {
	ID               string   `json:"id"`
	MetadataModified int64    `json:"metadataModified"`
	ResourceURI      string   `json:"resourceUri,omitempty"`
	ResourceModified int64    `json:"resourceModified,omitempty"`
	ResourceSize     int64    `json:"resourceSize,omitempty"`
	MetadataSize     int64    `json:"metadataSize,omitempty"`
	IsDeleted        bool     `json:"isDeleted"`
	Tags             []string `json:"tags,omitempty"`
	Lineage          []string `json:"lineage,omitempty"`
}

func (w wireMetadata) toModel() models.Metadata {
	m := models.Metadata{
		ID:               w.ID,
		MetadataModified: time.UnixMilli(w.MetadataModified),
		ResourceURI:      w.ResourceURI,
		ResourceSize:     w.ResourceSize,
		MetadataSize:     w.MetadataSize,
		IsDeleted:        w.IsDeleted,
		Lineage:          append([]string{}, w.Lineage...),
	}
	if w.ResourceModified != 0 {
		m.ResourceModified = time.UnixMilli(w.ResourceModified)
	}
	for _, tag := range w.Tags {
		m.AddTag(tag)
	}
	return m
}

func fromModel(m models.Metadata) wireMetadata {
	w := wireMetadata{
		ID:               m.ID,
		MetadataModified: m.MetadataModified.UnixMilli(),
		ResourceURI:      m.ResourceURI,
		ResourceSize:     m.ResourceSize,
		MetadataSize:     m.MetadataSize,
		IsDeleted:        m.IsDeleted,
		Lineage:          m.Lineage,
	}
	if !m.ResourceModified.IsZero() {
		w.ResourceModified = m.ResourceModified.UnixMilli()
	}
	for tag := range m.Tags {
		w.Tags = append(w.Tags, tag)
	}
	return w
}

// queryStream decodes a full JSON array response once and replays it
// record by record; the node's pagination, if any, is opaque to the
// core (§9's "lazy change set" note applies to the wire protocol, not
// to the already-materialized page this adapter requests at a time).
type queryStream struct {
	items []wireMetadata
	pos   int
}

func (s *queryStream) Next() (models.Metadata, error) {
	if s.pos >= len(s.items) {
		return models.Metadata{}, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item.toModel(), nil
}

// Query requests the change set from the node's /query endpoint.
func (a *Adapter) Query(ctx context.Context, req coresync.QueryRequest) (coresync.MetadataStream, error) {
	body := struct {
		Query                 string   `json:"query"`
		ExcludeAtDestinations []string `json:"excludeAtDestinations,omitempty"`
		IncludeIDs            []string `json:"includeIds,omitempty"`
		ModifiedAfter         int64    `json:"modifiedAfter,omitempty"`
	}{
		Query:                 req.Query,
		ExcludeAtDestinations: req.ExcludeAtDestinations,
		IncludeIDs:            req.IncludeIDs,
	}
	if !req.ModifiedAfter.IsZero() {
		body.ModifiedAfter = req.ModifiedAfter.UnixMilli()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query request: %w", err)
	}

	httpReq, err := a.newRequest(ctx, http.MethodPost, "/query", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAdapterTransport, "query request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.statusError("query", resp)
	}

	var items []wireMetadata
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	return &queryStream{items: items}, nil
}

// Exists checks the node's /records/{id}/exists endpoint.
func (a *Adapter) Exists(ctx context.Context, metadata models.Metadata) (bool, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/records/"+url.PathEscape(metadata.ID)+"/exists", nil)
	if err != nil {
		return false, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrAdapterTransport, "exists check failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, a.statusError("exists", resp)
	}

	var result struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode exists response: %w", err)
	}
	return result.Exists, nil
}

// ReadResource fetches the binary payload, preferring the configured
// Backend over an inline HTTP transfer.
func (a *Adapter) ReadResource(ctx context.Context, metadata models.Metadata) (coresync.ResourceResponse, error) {
	if a.backend != nil {
		body, size, err := a.backend.Get(ctx, metadata.ResourceURI)
		if err != nil {
			return coresync.ResourceResponse{}, apperrors.Wrap(apperrors.ErrAdapterTransport, "failed to read resource from backend", err)
		}
		return coresync.ResourceResponse{Body: body, Size: size}, nil
	}

	req, err := a.newRequest(ctx, http.MethodGet, "/resources/"+url.PathEscape(metadata.ID), nil)
	if err != nil {
		return coresync.ResourceResponse{}, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return coresync.ResourceResponse{}, apperrors.Wrap(apperrors.ErrAdapterTransport, "resource request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return coresync.ResourceResponse{}, a.statusError("readResource", resp)
	}

	return coresync.ResourceResponse{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (a *Adapter) CreateRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	return a.sendRecord(ctx, http.MethodPost, "/records", metadata)
}

func (a *Adapter) UpdateRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	return a.sendRecord(ctx, http.MethodPut, "/records/"+url.PathEscape(metadata.ID), metadata)
}

func (a *Adapter) DeleteRequest(ctx context.Context, metadata models.Metadata) (bool, error) {
	req, err := a.newRequest(ctx, http.MethodDelete, "/records/"+url.PathEscape(metadata.ID), nil)
	if err != nil {
		return false, err
	}
	return a.doAndCheckSuccess(req)
}

// CreateResource pushes the binary payload through the backend (if
// configured), then sends the metadata record pointing at it.
func (a *Adapter) CreateResource(ctx context.Context, metadata models.Metadata, res coresync.ResourceResponse) (bool, error) {
	if err := a.pushResource(ctx, metadata, res); err != nil {
		return false, err
	}
	return a.sendRecord(ctx, http.MethodPost, "/records", metadata)
}

func (a *Adapter) UpdateResource(ctx context.Context, metadata models.Metadata, res coresync.ResourceResponse) (bool, error) {
	if err := a.pushResource(ctx, metadata, res); err != nil {
		return false, err
	}
	return a.sendRecord(ctx, http.MethodPut, "/records/"+url.PathEscape(metadata.ID), metadata)
}

func (a *Adapter) pushResource(ctx context.Context, metadata models.Metadata, res coresync.ResourceResponse) error {
	if a.backend != nil {
		_, err := a.backend.Put(ctx, metadata.ResourceURI, res.Body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrAdapterTransport, "failed to push resource to backend", err)
		}
		return nil
	}

	req, err := a.newRequest(ctx, http.MethodPut, "/resources/"+url.PathEscape(metadata.ID), res.Body)
	if err != nil {
		return err
	}
	if res.ContentType != "" {
		req.Header.Set("Content-Type", res.ContentType)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAdapterTransport, "resource push failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return a.statusError("pushResource", resp)
	}
	return nil
}

func (a *Adapter) sendRecord(ctx context.Context, method, path string, metadata models.Metadata) (bool, error) {
	payload, err := json.Marshal(fromModel(metadata))
	if err != nil {
		return false, fmt.Errorf("failed to encode record: %w", err)
	}

	req, err := a.newRequest(ctx, method, path, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	return a.doAndCheckSuccess(req)
}

func (a *Adapter) doAndCheckSuccess(req *http.Request) (bool, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrAdapterTransport, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, a.statusError("request", resp)
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (a *Adapter) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	return req, nil
}

func (a *Adapter) statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	code := apperrors.ErrAdapterTransport
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		code = apperrors.ErrAdapterAuthFailed
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		code = apperrors.ErrAdapterQuotaExceeded
	}
	return apperrors.Wrap(code, fmt.Sprintf("%s failed with status %d", op, resp.StatusCode),
		fmt.Errorf("%s", string(respBody)))
}
