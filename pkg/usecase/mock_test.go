package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
)

// MockContentStore is a hand-written ContentStore double. Behavior is
// overridable per test via the function fields; the defaults emulate a
// healthy store that derives content keys from the payload hash and
// remembers everything it stored.
type MockContentStore struct {
	putBytesFunc         func(ctx context.Context, uri string, data []byte) (string, error)
	putFileFunc          func(ctx context.Context, uri string, path string) (string, error)
	getBytesFunc         func(ctx context.Context, uri string, timeout time.Duration) ([]byte, error)
	checkRetrievableFunc func(ctx context.Context, uri string, timeout time.Duration) bool
	generateKeypairFunc  func(ctx context.Context) (string, string, error)
	derivePublicFunc     func(ctx context.Context, privateBase string) (string, error)

	PutCalls []MockPutCall
	stored   map[string][]byte
}

type MockPutCall struct {
	URI  string
	Path string
}

func newMockContentStore() *MockContentStore {
	return &MockContentStore{stored: map[string][]byte{}}
}

func (m *MockContentStore) remember(uri string, data []byte) string {
	resultURI := uri
	if uri == "CHK@" {
		resultURI = "CHK@" + fsx.SHA256Bytes(data)[:16]
	}
	m.stored[resultURI] = bytes.Clone(data)
	return resultURI
}

func (m *MockContentStore) PutBytes(ctx context.Context, uri string, data []byte) (string, error) {
	m.PutCalls = append(m.PutCalls, MockPutCall{URI: uri})
	if m.putBytesFunc != nil {
		return m.putBytesFunc(ctx, uri, data)
	}
	return m.remember(uri, data), nil
}

func (m *MockContentStore) PutFile(ctx context.Context, uri string, path string) (string, error) {
	m.PutCalls = append(m.PutCalls, MockPutCall{URI: uri, Path: path})
	if m.putFileFunc != nil {
		return m.putFileFunc(ctx, uri, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return m.remember(uri, data), nil
}

func (m *MockContentStore) GetBytes(ctx context.Context, uri string, timeout time.Duration) ([]byte, error) {
	if m.getBytesFunc != nil {
		return m.getBytesFunc(ctx, uri, timeout)
	}
	data, ok := m.stored[uri]
	if !ok {
		return nil, fmt.Errorf("no data stored at %s", uri)
	}
	return data, nil
}

func (m *MockContentStore) CheckRetrievable(ctx context.Context, uri string, timeout time.Duration) bool {
	if m.checkRetrievableFunc != nil {
		return m.checkRetrievableFunc(ctx, uri, timeout)
	}
	_, ok := m.stored[uri]
	return ok
}

func (m *MockContentStore) GenerateKeypair(ctx context.Context) (string, string, error) {
	if m.generateKeypairFunc != nil {
		return m.generateKeypairFunc(ctx)
	}
	return "USK@priv,AQECAAE/updates/info/", "USK@pub,AQACAAE/updates/info/", nil
}

func (m *MockContentStore) DerivePublicBase(ctx context.Context, privateBase string) (string, error) {
	if m.derivePublicFunc != nil {
		return m.derivePublicFunc(ctx, privateBase)
	}
	return strings.Replace(privateBase, "priv,AQECAAE", "pub,AQACAAE", 1), nil
}

// ChkPuts counts the content-key inserts (the idempotence-sensitive ones).
func (m *MockContentStore) ChkPuts() int {
	count := 0
	for _, call := range m.PutCalls {
		if call.URI == "CHK@" {
			count++
		}
	}
	return count
}

// MockReleaseHost is a hand-written ReleaseHost double. Downloads write
// asset.Size bytes so size-based caching behaves like the real host.
type MockReleaseHost struct {
	getReleaseFunc    func(ctx context.Context, owner, repo, tag string) (*model.Release, error)
	downloadAssetFunc func(ctx context.Context, ref *model.ReleaseRef, asset model.ReleaseAsset, dest string) error

	GetReleaseCalls int
	DownloadCalls   []string
}

func (m *MockReleaseHost) GetRelease(ctx context.Context, owner, repo, tag string) (*model.Release, error) {
	m.GetReleaseCalls++
	if m.getReleaseFunc != nil {
		return m.getReleaseFunc(ctx, owner, repo, tag)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockReleaseHost) DownloadAsset(ctx context.Context, ref *model.ReleaseRef, asset model.ReleaseAsset, dest string) error {
	m.DownloadCalls = append(m.DownloadCalls, asset.Name)
	if m.downloadAssetFunc != nil {
		return m.downloadAssetFunc(ctx, ref, asset, dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, testAssetContent(asset), 0o644)
}

func (m *MockReleaseHost) Name() string { return "mock" }

func testAssetContent(asset model.ReleaseAsset) []byte {
	return bytes.Repeat([]byte{'x'}, int(asset.Size))
}

// testRelease is the canonical fixture: edition 12 with two package
// assets plus ignorable noise.
func testRelease() *model.Release {
	return &model.Release{
		ID:   9001,
		Tag:  "v12",
		Body: "## Highlights\n- faster inserts\n\n## Fixes\n- resume bug",
		Assets: []model.ReleaseAsset{
			{ID: 1, Name: "cryptad_12_amd64.deb", DownloadURL: "https://example.com/amd64.deb", Size: 64},
			{ID: 2, Name: "cryptad_12_arm64.deb", DownloadURL: "https://example.com/arm64.deb", Size: 32},
			{ID: 3, Name: "SHA256SUMS.txt", Size: 5},
			{ID: 4, Name: "cryptad_12_amd64.deb.sig", Size: 5},
		},
	}
}

func testReleaseRef() *model.ReleaseRef {
	return &model.ReleaseRef{
		Owner:          "cryptad",
		Repo:           "cryptad",
		Tag:            "v12",
		Edition:        "12",
		ReleasePageURL: "https://github.com/cryptad/cryptad/releases/tag/v12",
	}
}

func testHost() *MockReleaseHost {
	return &MockReleaseHost{
		getReleaseFunc: func(ctx context.Context, owner, repo, tag string) (*model.Release, error) {
			return testRelease(), nil
		},
	}
}
