package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"healthmon/internals/domain"
	"healthmon/internals/modules/probe"
	"healthmon/pkg/httpclient"
)

var (
	probeTimeout time.Duration
	probeJSON    bool
)

var errCheckFailed = errors.New("check failed")

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Run a single check against a URL",
	Long: `Run one health check and print the result. The URL scheme selects
the check: http and https issue a GET, tcp only connects.

  healthmon probe https://example.com/health
  healthmon probe tcp://db.internal:5432`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().DurationVarP(&probeTimeout, "timeout", "t", 5*time.Second, "Probe timeout (capped at 30s)")
	probeCmd.Flags().BoolVar(&probeJSON, "json", false, "Print the result as JSON")
}

func runProbe(cmd *cobra.Command, args []string) error {
	target, err := serviceFromURL(args[0])
	if err != nil {
		return err
	}

	p := probe.NewWithClient(httpclient.NewHttpClient())
	res, err := p.Check(cmd.Context(), target, probe.EffectiveTimeout(probeTimeout, probe.MaxTimeout))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if probeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, formatResult(target, res))
	}

	if !res.Success {
		return errCheckFailed
	}
	return nil
}

func formatResult(target domain.Service, res domain.CheckResult) string {
	if res.Success {
		s := fmt.Sprintf("UP    %s  %s", target.URL(), res.Latency.Round(time.Millisecond))
		if res.StatusCode != 0 {
			s += fmt.Sprintf("  %d", res.StatusCode)
		}
		return s
	}
	s := fmt.Sprintf("DOWN  %s  %s", target.URL(), res.ErrorClass)
	if res.Message != "" {
		s += ": " + res.Message
	}
	return s
}

// serviceFromURL turns a probe URL into a one-off Service.
func serviceFromURL(raw string) (domain.Service, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return domain.Service{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return domain.Service{}, fmt.Errorf("url %q has no host", raw)
	}

	svc := domain.Service{
		Name:               "probe",
		Host:               u.Hostname(),
		Scheme:             domain.Scheme(u.Scheme),
		Path:               u.Path,
		IntervalSec:        int(probe.MaxTimeout / time.Second),
		DownAlertThreshold: 1,
	}
	if u.RawQuery != "" {
		svc.Path += "?" + u.RawQuery
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return domain.Service{}, fmt.Errorf("url %q: bad port", raw)
		}
		svc.Port = port
	}
	if svc.Scheme == domain.SchemeTCP {
		svc.Path = ""
	}

	return svc.Normalize(domain.Defaults{})
}
