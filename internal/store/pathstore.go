package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgallion1/richconv/internal/pathstore"
)

// PathstoreStore keeps documents as JSON values in a remote pathstore.
type PathstoreStore struct {
	client *pathstore.Client
}

func NewPathstoreStore(client *pathstore.Client) *PathstoreStore {
	return &PathstoreStore{client: client}
}

func (s *PathstoreStore) Put(ctx context.Context, rec Record) error {
	normalize(&rec)
	return s.client.PutNode(ctx, rec.Key, pathstore.NodeRequest{
		Value:     rec,
		MergeMode: "replace",
		Source:    "richconv",
	})
}

func (s *PathstoreStore) Get(ctx context.Context, key string) (*Record, error) {
	node, err := s.client.GetNode(ctx, key)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrNotFound
	}
	return decodeRecord(*node)
}

func (s *PathstoreStore) Delete(ctx context.Context, key string) error {
	return s.client.DeleteNode(ctx, key, false)
}

func (s *PathstoreStore) List(ctx context.Context, prefix string, limit int) ([]Record, error) {
	nodes, err := s.client.ListChildren(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(nodes))
	for _, n := range nodes {
		rec, err := decodeRecord(n)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *PathstoreStore) Close() error {
	s.client.Close()
	return nil
}

func decodeRecord(n pathstore.NodeResponse) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(n.Value, &rec); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", n.Key, err)
	}
	if rec.Key == "" {
		rec.Key = n.Key
	}
	return &rec, nil
}
