package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const (
	shortChangelogName = "changelog-short.md"
	fullChangelogName  = "changelog-full.md"

	// shortChangelogMaxLines caps the derived short changelog.
	shortChangelogMaxLines = 20

	emptyBodyFallback = "No changelog content was provided in the GitHub release body."
)

// UploadChangelogs derives short and full changelog texts from the
// release notes (or takes caller-supplied override files), and inserts
// each into the store only when its content hash differs from the
// recorded one. State is persisted after each of the two uploads so a
// crash between them does not lose the completed half.
func (p *Pipeline) UploadChangelogs(ctx context.Context, store interfaces.ContentStore, shortOverride, fullOverride string) (*model.ChangelogRecord, error) {
	logger := ctxlog.From(ctx)

	if p.dryRun {
		logger.Info("[dry-run] Would upload short and full changelogs")
		return p.state.Changelogs, nil
	}
	if store == nil {
		return nil, goerr.New("content store client is required for upload-changelogs",
			goerr.T(types.TagConfig))
	}

	shortPath, fullPath, err := p.prepareChangelogFiles(ctx, shortOverride, fullOverride)
	if err != nil {
		return nil, err
	}

	record := model.ChangelogRecord{}
	if p.state.Changelogs != nil {
		record = *p.state.Changelogs
	}

	shortSHA, err := fsx.SHA256File(shortPath)
	if err != nil {
		return nil, err
	}
	fullSHA, err := fsx.SHA256File(fullPath)
	if err != nil {
		return nil, err
	}
	record.ShortPath = fsx.ToWorkdirRelative(shortPath, p.workdir)
	record.FullPath = fsx.ToWorkdirRelative(fullPath, p.workdir)

	if record.ShortSHA256 == shortSHA && record.ChangelogCHK != "" {
		logger.Info("Reusing existing short changelog content key", "chk", record.ChangelogCHK)
	} else {
		logger.Info("Uploading short changelog", "path", shortPath)
		chk, err := store.PutFile(ctx, chkInsertURI, shortPath)
		if err != nil {
			return nil, err
		}
		record.ChangelogCHK = chk
		record.ShortSHA256 = shortSHA
		p.state.Changelogs = &record
		if err := p.saveState(); err != nil {
			return nil, err
		}
		logger.Info("Saved partial changelog state after short upload")
	}

	if record.FullSHA256 == fullSHA && record.FullChangelogCHK != "" {
		logger.Info("Reusing existing full changelog content key", "chk", record.FullChangelogCHK)
	} else {
		logger.Info("Uploading full changelog", "path", fullPath)
		chk, err := store.PutFile(ctx, chkInsertURI, fullPath)
		if err != nil {
			return nil, err
		}
		record.FullChangelogCHK = chk
		record.FullSHA256 = fullSHA
		p.state.Changelogs = &record
		if err := p.saveState(); err != nil {
			return nil, err
		}
		logger.Info("Saved partial changelog state after full upload")
	}

	p.state.Changelogs = &record
	if err := p.saveState(); err != nil {
		return nil, err
	}
	return &record, nil
}

// prepareChangelogFiles writes the short/full changelog files under the
// workdir, from overrides when given, else derived from the release body.
func (p *Pipeline) prepareChangelogFiles(ctx context.Context, shortOverride, fullOverride string) (string, string, error) {
	var shortText, fullText string

	if shortOverride == "" || fullOverride == "" {
		body, err := p.ensureReleaseBody(ctx)
		if err != nil {
			return "", "", err
		}
		shortText, fullText = DeriveChangelogTexts(body)
	}

	if shortOverride != "" {
		raw, err := os.ReadFile(shortOverride)
		if err != nil {
			return "", "", goerr.Wrap(err, "failed to read short changelog override",
				goerr.T(types.TagConfig), goerr.V("path", shortOverride))
		}
		shortText = string(raw)
	}
	if fullOverride != "" {
		raw, err := os.ReadFile(fullOverride)
		if err != nil {
			return "", "", goerr.Wrap(err, "failed to read full changelog override",
				goerr.T(types.TagConfig), goerr.V("path", fullOverride))
		}
		fullText = string(raw)
	}

	shortPath := filepath.Join(p.workdir, shortChangelogName)
	fullPath := filepath.Join(p.workdir, fullChangelogName)
	if err := os.WriteFile(shortPath, []byte(ensureTrailingNewline(shortText)), 0o644); err != nil {
		return "", "", goerr.Wrap(err, "failed to write short changelog", goerr.V("path", shortPath))
	}
	if err := os.WriteFile(fullPath, []byte(ensureTrailingNewline(fullText)), 0o644); err != nil {
		return "", "", goerr.Wrap(err, "failed to write full changelog", goerr.V("path", fullPath))
	}
	return shortPath, fullPath, nil
}

// DeriveChangelogTexts splits release notes into a short changelog (the
// first markdown section, capped at 20 lines) and a full changelog (the
// whole body). An empty body yields a fixed placeholder for both.
func DeriveChangelogTexts(releaseBody string) (shortText, fullText string) {
	normalized := strings.TrimSpace(releaseBody)
	if normalized == "" {
		fallback := emptyBodyFallback + "\n"
		return fallback, fallback
	}

	lines := strings.Split(normalized, "\n")
	shortLines := firstSection(lines)
	if len(shortLines) == 0 {
		shortLines = lines
	}
	if len(shortLines) > shortChangelogMaxLines {
		shortLines = shortLines[:shortChangelogMaxLines]
	}

	shortText = strings.TrimSpace(strings.Join(shortLines, "\n")) + "\n"
	fullText = normalized + "\n"
	return shortText, fullText
}

// firstSection returns the lines up to (excluding) the second markdown
// heading, skipping leading blank lines.
func firstSection(lines []string) []string {
	var section []string
	started := false
	for _, line := range lines {
		if !started && strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && started && len(section) > 0 {
			break
		}
		started = true
		section = append(section, line)
	}
	return section
}

func ensureTrailingNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}
