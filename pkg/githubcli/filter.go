package githubcli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// defaultExtensions lists source file extensions worth analyzing.
var defaultExtensions = []string{
	".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".go", ".rb", ".php",
}

// defaultExcludePatterns lists path fragments for generated code, vendored
// dependencies, and test fixtures that should never be analyzed.
var defaultExcludePatterns = []string{
	"node_modules/",
	"vendor/",
	"venv/",
	".venv/",
	"dist/",
	"build/",
	".git/",
	"__pycache__/",
	"migrations/",
	"test_",
	"_test.",
	".spec.",
	".test.",
	".min.js",
}

type fileFilter struct {
	Extensions      []string `mapstructure:"extensions"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
}

// loadFileFilter builds the candidate file filter, overridden from a viper
// config file when one is supplied.
func loadFileFilter(path string) (*fileFilter, error) {
	f := &fileFilter{
		Extensions:      defaultExtensions,
		ExcludePatterns: defaultExcludePatterns,
	}
	if path == "" {
		return f, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read filter config %s: %w", path, err)
	}
	if err := v.Unmarshal(f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filter config %s: %w", path, err)
	}
	return f, nil
}

// shouldAnalyze reports whether a repository path is a candidate for
// security analysis.
func (f *fileFilter) shouldAnalyze(path string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range f.ExcludePatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(lower))
	for _, e := range f.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
