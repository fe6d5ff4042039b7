package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// VerifyReportFileName is where the verification evidence is persisted.
const VerifyReportFileName = "verify.json"

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// VerifyInput parameterizes one verification run.
type VerifyInput struct {
	// DescriptorURI is the primary fetch URI (the expected pointer).
	DescriptorURI string
	// FallbackURI is the last recorded publish result URI, tried when the
	// primary fetch fails.
	FallbackURI string
	// ExpectedVersion and ExpectedReleasePageURL, when non-empty, must
	// match the descriptor's fields exactly.
	ExpectedVersion        string
	ExpectedReleasePageURL string
	// Timeout bounds each store fetch/probe operation.
	Timeout time.Duration
	// Deep additionally downloads every retrievable reference.
	Deep bool
	// Workdir receives verify.json and, under deep, the downloads/ area.
	Workdir string
}

// VerifyPublishedDescriptor fetches a published descriptor back from the
// store and checks it without trusting the publish stage's bookkeeping:
// schema validation runs against the fetched bytes, identity fields are
// compared to expectations, and every referenced content key is probed
// for retrievability. The structured report is persisted regardless of
// outcome; schema and identity findings are recorded as data while
// transport and decode failures surface as errors.
func VerifyPublishedDescriptor(ctx context.Context, store interfaces.ContentStore, in VerifyInput) (*model.VerifyReport, error) {
	logger := ctxlog.From(ctx)

	report := &model.VerifyReport{
		DescriptorURI:  in.DescriptorURI,
		CheckedAt:      fsx.NowUTC(),
		Deep:           in.Deep,
		SchemaErrors:   []string{},
		IdentityErrors: []string{},
		FetchSource:    model.FetchSourceRequested,
		ChkChecks:      []model.ChkCheck{},
	}

	descriptorBytes, err := store.GetBytes(ctx, in.DescriptorURI, in.Timeout)
	if err != nil {
		if in.FallbackURI == "" || in.FallbackURI == in.DescriptorURI {
			return nil, err
		}
		logger.Warn("Primary descriptor fetch failed; retrying with published result URI",
			"error", err)
		fallbackBytes, fallbackErr := store.GetBytes(ctx, in.FallbackURI, in.Timeout)
		if fallbackErr != nil {
			return nil, goerr.Wrap(fallbackErr,
				"failed to retrieve descriptor from requested URI and published result URI fallback",
				goerr.T(types.TagCollaborator))
		}
		descriptorBytes = fallbackBytes
		report.FetchFallbackUsed = true
		report.FetchSource = model.FetchSourceFallback
		report.PrimaryFetchError = err.Error()
		report.DescriptorURIResolved = in.FallbackURI
	} else {
		report.DescriptorURIResolved = in.DescriptorURI
	}

	if !utf8.Valid(descriptorBytes) {
		return nil, goerr.New("published descriptor is not valid UTF-8",
			goerr.T(types.TagIntegrity), goerr.V("uri", report.DescriptorURIResolved))
	}
	var document any
	if err := json.Unmarshal(descriptorBytes, &document); err != nil {
		return nil, goerr.Wrap(err, "published descriptor is not valid JSON",
			goerr.T(types.TagIntegrity), goerr.V("uri", report.DescriptorURIResolved))
	}

	root, _ := document.(map[string]any)
	if root != nil {
		report.DescriptorVersion, _ = root["version"].(string)
		report.DescriptorPageURL, _ = root["release_page_url"].(string)
	}

	report.SchemaErrors = append(report.SchemaErrors, model.ValidateDocument(document)...)
	report.IdentityErrors = append(report.IdentityErrors,
		validateDescriptorIdentity(root, in.ExpectedVersion, in.ExpectedReleasePageURL)...)

	downloadDir := filepath.Join(in.Workdir, "downloads")
	if in.Deep {
		if err := os.MkdirAll(downloadDir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create download directory",
				goerr.V("path", downloadDir))
		}
	}

	allRetrievable := true
	check := func(kind, key, chk, destName string) error {
		retrievable := store.CheckRetrievable(ctx, chk, in.Timeout)
		report.ChkChecks = append(report.ChkChecks, model.ChkCheck{
			Kind: kind, Key: key, CHK: chk, Retrievable: retrievable,
		})
		allRetrievable = allRetrievable && retrievable
		if in.Deep && retrievable {
			payload, err := store.GetBytes(ctx, chk, in.Timeout)
			if err != nil {
				return err
			}
			dest := filepath.Join(downloadDir, destName)
			if err := os.WriteFile(dest, payload, 0o644); err != nil {
				return goerr.Wrap(err, "failed to write downloaded reference", goerr.V("path", dest))
			}
		}
		return nil
	}

	if root != nil {
		if packages, ok := root["packages"].(map[string]any); ok {
			for _, packageKey := range sortedKeys(packages) {
				pkg, ok := packages[packageKey].(map[string]any)
				if !ok {
					continue
				}
				chk, ok := pkg["chk"].(string)
				if !ok {
					continue
				}
				if err := check("package", packageKey, chk, sanitizeFilename(packageKey)+".bin"); err != nil {
					return nil, err
				}
			}
		}
		for _, field := range []string{"changelog_chk", "fullchangelog_chk"} {
			if chk, ok := root[field].(string); ok {
				if err := check("changelog", field, chk, field+".txt"); err != nil {
					return nil, err
				}
			}
		}
	}

	report.OK = len(report.SchemaErrors) == 0 && len(report.IdentityErrors) == 0 && allRetrievable
	if err := fsx.SaveJSON(filepath.Join(in.Workdir, VerifyReportFileName), report); err != nil {
		return nil, err
	}
	return report, nil
}

func validateDescriptorIdentity(root map[string]any, expectedVersion, expectedReleasePageURL string) []string {
	findings := []string{}
	if root == nil {
		return findings
	}

	if expectedVersion != "" {
		actual, _ := root["version"].(string)
		if actual != expectedVersion {
			findings = append(findings, fmt.Sprintf(
				"descriptor version mismatch: expected %q, got %q", expectedVersion, actual))
		}
	}
	if expectedReleasePageURL != "" {
		actual, _ := root["release_page_url"].(string)
		if actual != expectedReleasePageURL {
			findings = append(findings, fmt.Sprintf(
				"descriptor release_page_url mismatch: expected %q, got %q", expectedReleasePageURL, actual))
		}
	}
	return findings
}

func sanitizeFilename(value string) string {
	sanitized := strings.Trim(unsafeFilenameRe.ReplaceAllString(value, "-"), "-")
	if sanitized == "" {
		return "artifact"
	}
	return sanitized
}
