package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/hesusruiz/scribe/biblio"
	"github.com/hesusruiz/scribe/scribe"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var debug bool

// newLogger builds the logging system according to the debug flag
func newLogger() *zap.SugaredLogger {
	var z *zap.Logger
	var err error

	if debug {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return z.Sugar()
}

// newCompiler assembles a compiler from the command line options,
// loading the bibliographic database if one was given.
func newCompiler(c *cli.Context, sugar *zap.SugaredLogger) (*scribe.Compiler, error) {
	compiler := &scribe.Compiler{Log: sugar}

	if biblioFile := c.String("biblio"); len(biblioFile) > 0 {
		backend, err := biblio.LoadFile(biblioFile)
		if err != nil {
			return nil, fmt.Errorf("loading bibliography %s: %w", biblioFile, err)
		}
		compiler.Biblio = backend
	}

	return compiler, nil
}

// compileOnce processes the input file and writes the output and the
// diagnostics report. It returns the result so the caller can decide the
// exit status.
func compileOnce(compiler *scribe.Compiler, inputFileName, outputFileName, reportFileName string, dryrun bool, sugar *zap.SugaredLogger) (*scribe.Result, error) {

	result, err := compiler.CompileFile(context.Background(), inputFileName)
	if err != nil {
		return nil, err
	}

	// Print the diagnostics so the user sees them without opening the report
	for _, d := range result.Diags {
		fmt.Println(d)
	}

	if dryrun {
		return result, nil
	}

	if err := os.WriteFile(outputFileName, result.HTML, 0664); err != nil {
		return nil, err
	}
	sugar.Infow("written", "file", outputFileName, "bytes", len(result.HTML))

	if len(reportFileName) > 0 {
		report, err := result.Doc.Diags.Report()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(reportFileName, report, 0664); err != nil {
			return nil, err
		}
		sugar.Infow("written", "file", reportFileName, "diagnostics", len(result.Diags))
	}

	return result, nil
}

// processWatch checks periodically if the input file has been modified,
// and if so it compiles it again and rewrites the output file
func processWatch(compiler *scribe.Compiler, inputFileName, outputFileName, reportFileName string, sugar *zap.SugaredLogger) error {

	var oldTimestamp time.Time

	for {
		info, err := os.Stat(inputFileName)
		if err != nil {
			return err
		}

		if oldTimestamp.Before(info.ModTime()) {
			oldTimestamp = info.ModTime()
			fmt.Println("************Processing*************")
			if _, err := compileOnce(compiler, inputFileName, outputFileName, reportFileName, false, sugar); err != nil {
				// Keep watching, a transient error should not kill the loop
				sugar.Errorw("compilation failed", "file", inputFileName, "error", err)
			}
		}

		// Check again in one second
		time.Sleep(1 * time.Second)
	}
}

// process is the main entry point of the program
func process(c *cli.Context) error {

	var inputFileName = "index.txt"

	outputFileName := c.String("output")
	reportFileName := c.String("diagnostics")
	dryrun := c.Bool("dryrun")
	debug = c.Bool("debug")

	sugar := newLogger()
	defer sugar.Sync()

	if c.Args().Present() {
		inputFileName = c.Args().First()
	} else {
		fmt.Printf("no input file provided, using \"%v\"\n", inputFileName)
	}

	// Generate the output file name from the input one
	if len(outputFileName) == 0 {
		ext := path.Ext(inputFileName)
		if len(ext) == 0 {
			outputFileName = inputFileName + ".html"
		} else {
			outputFileName = strings.Replace(inputFileName, ext, ".html", 1)
		}
	}

	if !dryrun {
		fmt.Printf("processing %v and generating %v\n", inputFileName, outputFileName)
	} else {
		fmt.Printf("dry run: processing %v without writing output\n", inputFileName)
	}

	compiler, err := newCompiler(c, sugar)
	if err != nil {
		return err
	}

	// This is useful for development.
	// If the user specified to watch, loop forever processing the input file when modified
	if c.Bool("watch") {
		return processWatch(compiler, inputFileName, outputFileName, reportFileName, sugar)
	}

	result, err := compileOnce(compiler, inputFileName, outputFileName, reportFileName, dryrun, sugar)
	if err != nil {
		return err
	}

	// The output was written, but errors in the document make the run fail
	// so CI can reject the document
	if result.Failed() {
		return cli.Exit(fmt.Sprintf("%v: compilation finished with errors", inputFileName), 1)
	}

	return nil
}

// selftest compiles the bundled corpus and compares against the golden files
func selftest(c *cli.Context) error {

	debug = c.Bool("debug")

	sugar := newLogger()
	defer sugar.Sync()

	dir := c.String("corpus")

	if err := scribe.SelfTest(context.Background(), dir, sugar); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Println("selftest passed")
	return nil
}

func main() {

	app := &cli.App{
		Name:      "scribe",
		Version:   "v0.1",
		Compiled:  time.Now(),
		Usage:     "compile a specification document and produce HTML",
		UsageText: "scribe [options] [INPUT_FILE] (default input file is index.txt)",
		Action:    process,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write html to `FILE` (default is input file name with extension .html)",
			},
			&cli.StringFlag{
				Name:    "diagnostics",
				Aliases: []string{"r"},
				Usage:   "write the machine-readable diagnostics report to `FILE`",
			},
			&cli.StringFlag{
				Name:    "biblio",
				Aliases: []string{"b"},
				Usage:   "read the bibliographic database from `FILE`",
			},
			&cli.BoolFlag{
				Name:    "dryrun",
				Aliases: []string{"n"},
				Usage:   "do not generate output file, just process input file",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "run in debug mode",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "watch the file for changes",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "selftest",
				Usage:  "compile the test corpus and compare against the golden outputs",
				Action: selftest,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "corpus",
						Aliases: []string{"c"},
						Value:   "testdata/corpus",
						Usage:   "read the test corpus from `DIR`",
					},
					&cli.BoolFlag{
						Name:    "debug",
						Aliases: []string{"d"},
						Usage:   "run in debug mode",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		panic(err)
	}
}
