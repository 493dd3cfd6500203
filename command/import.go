package command

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-harvest/harvest"
)

// EntryLoader loads entries to import from a source.
type EntryLoader func(ctx context.Context) ([]harvest.EntryInput, error)

// ImportLimits bounds a single import run.
type ImportLimits struct {
	MaxEntries int
}

// ImportSummary reports the outcome of an import run.
type ImportSummary struct {
	Recorded int
	Summary  *harvest.ExportResult
}

// ImportCommand records entries in bulk and optionally exports the summary
// once they are all in the ledger.
type ImportCommand struct {
	service   harvest.Service
	loader    EntryLoader
	cliConfig gcmd.CLIConfig
	limits    ImportLimits
	summary   harvest.Format
}

// ImportOption customizes import commands.
type ImportOption func(*ImportCommand)

// WithImportCLIConfig overrides CLI configuration.
func WithImportCLIConfig(cfg gcmd.CLIConfig) ImportOption {
	return func(cmd *ImportCommand) {
		cmd.cliConfig = cfg
	}
}

// WithImportLimits overrides import limits.
func WithImportLimits(limits ImportLimits) ImportOption {
	return func(cmd *ImportCommand) {
		cmd.limits = limits
	}
}

// WithSummaryExport exports the summary in format after the import.
func WithSummaryExport(format harvest.Format) ImportOption {
	return func(cmd *ImportCommand) {
		cmd.summary = format
	}
}

// NewImportCommand creates an entry import command.
func NewImportCommand(svc harvest.Service, loader EntryLoader, opts ...ImportOption) *ImportCommand {
	cmd := &ImportCommand{
		service: svc,
		loader:  loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"entries-import"},
			Description: "Record harvest entries from a JSON file",
			Group:       "harvest",
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CLIHandler exposes the CLI handler.
func (c *ImportCommand) CLIHandler() any {
	return &importCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *ImportCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

// Run imports entries from path, or from the configured loader when path is empty.
func (c *ImportCommand) Run(ctx context.Context, path string) (ImportSummary, error) {
	if c == nil || c.service == nil {
		return ImportSummary{}, serviceRequired()
	}

	inputs, err := c.loadEntries(ctx, path)
	if err != nil {
		return ImportSummary{}, err
	}

	out := ImportSummary{}
	for _, input := range inputs {
		if c.limits.MaxEntries > 0 && out.Recorded >= c.limits.MaxEntries {
			break
		}
		if _, err := c.service.RecordEntry(ctx, input); err != nil {
			return out, err
		}
		out.Recorded++
	}

	if c.summary != "" && out.Recorded > 0 {
		result, err := c.service.ExportSummary(ctx, c.summary)
		if err != nil {
			return out, err
		}
		out.Summary = &result
	}
	return out, nil
}

func (c *ImportCommand) loadEntries(ctx context.Context, path string) ([]harvest.EntryInput, error) {
	if strings.TrimSpace(path) != "" {
		return LoadEntriesFile(path)
	}
	if c.loader == nil {
		return nil, errors.New("entry loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type importCLI struct {
	cmd  *ImportCommand
	From string `kong:"name='from',help='Path to a JSON array of entries'"`
}

func (c *importCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("import command is required", errors.CategoryInternal).
			WithTextCode("IMPORT_CMD_NIL")
	}
	_, err := c.cmd.Run(context.Background(), c.From)
	return err
}

// LoadEntriesFile reads a JSON array of entries.
func LoadEntriesFile(path string) ([]harvest.EntryInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read entries file failed").
			WithTextCode("ENTRIES_FILE_READ")
	}

	var inputs []harvest.EntryInput
	if err := json.Unmarshal(content, &inputs); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "entries file invalid JSON").
			WithTextCode("ENTRIES_FILE_INVALID")
	}
	return inputs, nil
}
