package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/water-ai/internal/models"
)

// Artifact files are named <dataset>_model_v<version>.json with a
// <dataset>_model_v<version>.meta.yaml sidecar next to them.
var artifactName = regexp.MustCompile(`^(.+)_model_v([^.]+)\.json$`)

// Sidecar is the metadata persisted next to each chain file.
type Sidecar struct {
	Kind       models.ModelKind  `yaml:"model_type"`
	Features   []string          `yaml:"feature_columns"`
	Target     string            `yaml:"target_column"`
	Derivation models.Derivation `yaml:"derivation,omitempty"`
	Training   map[string]any    `yaml:"training,omitempty"`
}

// ParseArtifactName recovers the dataset key and version token from a chain filename.
func ParseArtifactName(name string) (key, version string, ok bool) {
	m := artifactName.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// SidecarPath returns the metadata path belonging to a chain file.
func SidecarPath(chainPath string) string {
	return strings.TrimSuffix(chainPath, ".json") + ".meta.yaml"
}

// LoadDir builds a registry from every artifact in dir. Bad artifacts are
// logged and skipped; a missing directory yields an empty registry.
func LoadDir(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("model directory not found", slog.String("dir", dir))
		} else {
			logger.Error("read model directory", slog.String("dir", dir), slog.Any("error", err))
		}
		return New(logger)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		artifacts []*Artifact
		failures  []error
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		artifact, err := LoadArtifact(path)
		if err != nil {
			loadErr := &ArtifactLoadError{Path: path, Err: err}
			logger.Warn("skipping artifact", slog.String("path", path), slog.Any("error", err))
			failures = append(failures, loadErr)
			continue
		}
		logger.Info("loaded model",
			slog.String("dataset", artifact.Key),
			slog.String("version", artifact.Version),
			slog.String("kind", string(artifact.Kind)),
			slog.Int("features", len(artifact.Features)))
		artifacts = append(artifacts, artifact)
	}

	reg := New(logger, artifacts...)
	reg.loadErrors = failures
	logger.Info("model registry ready", slog.Int("models", reg.Len()), slog.Int("skipped", len(failures)))
	return reg
}

// LoadArtifact reads one chain file and its sidecar.
func LoadArtifact(path string) (*Artifact, error) {
	key, version, ok := ParseArtifactName(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("unrecognised artifact name %q", filepath.Base(path))
	}

	metaBytes, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var meta Sidecar
	if err := yaml.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}
	if len(meta.Features) == 0 {
		return nil, errors.New("sidecar lists no feature columns")
	}
	if meta.Kind == "" {
		meta.Kind = models.KindRegressor
	}
	if meta.Kind != models.KindRegressor && meta.Kind != models.KindClassifier {
		return nil, fmt.Errorf("unknown model type %q", meta.Kind)
	}
	if meta.Derivation == "" {
		meta.Derivation = InferDerivation(key, meta.Kind)
	}
	if !meta.Derivation.Valid() {
		return nil, fmt.Errorf("unknown derivation %q", meta.Derivation)
	}

	chainBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}
	chain, err := DecodeChain(chainBytes, len(meta.Features))
	if err != nil {
		return nil, err
	}
	if chain.IsClassifier() != (meta.Kind == models.KindClassifier) {
		return nil, fmt.Errorf("sidecar declares %s but chain classifier=%t", meta.Kind, chain.IsClassifier())
	}

	return &Artifact{
		Key:        key,
		Version:    version,
		Kind:       meta.Kind,
		Derivation: meta.Derivation,
		Features:   append([]string(nil), meta.Features...),
		Target:     meta.Target,
		Training:   meta.Training,
		Model:      chain,
	}, nil
}

// InferDerivation assigns a derivation to sidecars written before the tag existed.
func InferDerivation(key string, kind models.ModelKind) models.Derivation {
	if kind == models.KindClassifier {
		return models.DerivationPotability
	}
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "dataset3"):
		return models.DerivationEfficiency
	case strings.Contains(lower, "dataset4"):
		return models.DerivationOxygenDemand
	}
	return models.DerivationGeneric
}
