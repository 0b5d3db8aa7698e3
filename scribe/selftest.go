package scribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hesusruiz/scribe/biblio"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SelfTest compiles every .txt document under dir and compares the output
// byte for byte against the .html golden file next to it. All documents
// are checked even after a failure; the combined error reports every
// mismatch.
//
// Citations resolve against dir/localbiblio.yaml when present, so the
// corpus is self-contained and the run never touches the network.
func SelfTest(ctx context.Context, dir string, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading corpus directory: %w", err)
	}

	var sources []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			sources = append(sources, e.Name())
		}
	}
	sort.Strings(sources)

	if len(sources) == 0 {
		return fmt.Errorf("no .txt documents found in %s", dir)
	}

	var backend biblio.Resolver
	if bm, err := biblio.LoadFile(filepath.Join(dir, "localbiblio.yaml")); err == nil {
		backend = bm
	}

	compiler := &Compiler{Biblio: backend, Log: log}

	var failures error
	for _, name := range sources {
		srcPath := filepath.Join(dir, name)
		goldenPath := strings.TrimSuffix(srcPath, ".txt") + ".html"

		result, err := compiler.CompileFile(ctx, srcPath)
		if err != nil {
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}

		golden, err := os.ReadFile(goldenPath)
		if err != nil {
			failures = multierr.Append(failures, fmt.Errorf("%s: no golden file: %w", name, err))
			continue
		}

		if pos, ok := firstMismatch(result.HTML, golden); !ok {
			failures = multierr.Append(failures,
				fmt.Errorf("%s: output differs from golden at byte %d (got %d bytes, want %d)",
					name, pos, len(result.HTML), len(golden)))
			continue
		}

		log.Infow("selftest ok", "file", name, "bytes", len(result.HTML))
	}

	return failures
}

// firstMismatch compares two byte slices and returns the position of the
// first differing byte. ok is true when they are identical.
func firstMismatch(got, want []byte) (pos int, ok bool) {
	n := len(got)
	if len(want) < n {
		n = len(want)
	}
	for i := 0; i < n; i++ {
		if got[i] != want[i] {
			return i, false
		}
	}
	if len(got) != len(want) {
		return n, false
	}
	return 0, true
}
