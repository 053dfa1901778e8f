package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/samvad-hq/dataddo-puller/internal/config"
	"github.com/samvad-hq/dataddo-puller/internal/logger"
	"github.com/samvad-hq/dataddo-puller/pkg/dataddo"
	"github.com/samvad-hq/dataddo-puller/pkg/httpclient"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	outputJSON  = "json"
	outputTable = "table"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	kind := fs.String("kind", "source", "identifier kind: source, endpoint or flow")
	id := fs.String("id", "", "24-character hex object id")
	format := fs.String("format", "json", "response format: json or csv")
	jsonFormat := fs.String("json-format", "", "json layout: 2d_array or object_list")
	csvDelimiter := fs.String("csv-delimiter", "", "csv delimiter: semicolon, comma or tab")
	output := fs.String("output", outputJSON, "output: json or table")
	fs.String("base-url", dataddo.DefaultBaseURL, "API base URL")
	fs.String("log-level", "", "log level, debug traces requests (default LOG_LEVEL or info)")
	fs.Int64("timeout", int64(dataddo.DefaultTimeout.Seconds()), "HTTP timeout in seconds")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}

	log, err := logger.InitWriter(cfg, stderr)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	token, err := dataddo.NewToken(cfg.Token)
	if err != nil {
		return fmt.Errorf("DATADDO_TOKEN: %w", err)
	}
	k, err := dataddo.ParseKind(*kind)
	if err != nil {
		return err
	}
	objectID, err := dataddo.NewObjectID(k, strings.TrimSpace(*id))
	if err != nil {
		return err
	}

	ro, err := requestOptions(*format, *jsonFormat, *csvDelimiter)
	if err != nil {
		return err
	}

	out := strings.ToLower(strings.TrimSpace(*output))
	if out != outputJSON && out != outputTable {
		return fmt.Errorf("unsupported output %q (want %s or %s)", *output, outputJSON, outputTable)
	}

	client := dataddo.NewClient(
		dataddo.WithBaseURL(cfg.BaseURL),
		dataddo.WithHTTPClient(httpclient.NewRestyClient(cfg.HTTPTimeout, httpclient.WithUserAgent(dataddo.UserAgent))),
		dataddo.WithLogger(log),
	)
	log.DebugObj("fetch starting", "fetch_request", map[string]any{
		"base_url":      client.BaseURL(),
		"kind":          objectID.Kind().String(),
		"object_id":     objectID.String(),
		"format":        string(ro.Format),
		"json_format":   string(ro.JSONFormat),
		"csv_delimiter": ro.CSVDelimiter.Name(),
	})
	resp, err := client.GetSourceData(ctx, token, objectID, dataddo.WithRequestOptions(ro))
	if err != nil {
		return err
	}

	if out == outputTable {
		return writeTable(stdout, resp)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// loadConfig binds the connection flags over env and defaults. Flags left unset
// do not shadow the environment.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	_ = godotenv.Load("configs/.env")
	v := viper.New()
	for key, flag := range map[string]string{
		"dataddo_base_url":     "base-url",
		"log_level":            "log-level",
		"http_timeout_seconds": "timeout",
	} {
		f := fs.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// requestOptions maps flag values to request options; empty flags keep the defaults.
func requestOptions(format, jsonFormat, csvDelimiter string) (dataddo.RequestOptions, error) {
	ro := dataddo.DefaultRequestOptions()
	f, err := dataddo.ParseFormat(format)
	if err != nil {
		return ro, err
	}
	ro.Format = f

	if strings.TrimSpace(jsonFormat) != "" {
		if ro.JSONFormat, err = dataddo.ParseJSONFormat(jsonFormat); err != nil {
			return ro, err
		}
	}
	if strings.TrimSpace(csvDelimiter) != "" {
		if ro.CSVDelimiter, err = dataddo.ParseCSVDelimiter(csvDelimiter); err != nil {
			return ro, err
		}
	}
	return ro, nil
}

func writeTable(w io.Writer, resp *dataddo.DataResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(resp.Header(), "\t"))

	types := resp.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	for _, row := range resp.Data() {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == nil {
				continue
			}
			cells[i] = fmt.Sprint(cell)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rows, _ := resp.Shape()
	_, err := fmt.Fprintf(w, "\n%d of %d rows\n", rows, resp.TotalRows())
	return err
}
