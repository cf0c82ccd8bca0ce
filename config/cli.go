package config

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

type Cli struct {
	HTTPAddress        string
	InternalAddress    string
	PromPort           int
	APIToken           string
	UploadDir          string
	OutputRoot         string
	PublicURLPrefix    *url.URL
	CallbackURL        *url.URL
	FFprobePath        string
	FFmpegPath         string
	VideoCodec         string
	AudioCodec         string
	HLSTime            int
	ProbeTimeout       time.Duration
	EncodeTimeout      time.Duration
	ParallelRenditions int
	MaxInflightJobs    int64
	DeleteSource       bool
	CleanupOnFailure   bool
	Strategy           string
	Input              string
	JobID              string
}

// OneShot is true when the process converts a single file instead of serving HTTP
func (cli *Cli) OneShot() bool {
	return cli.Input != ""
}

// Validate catches settings that would only fail deep inside a job
func (cli *Cli) Validate() error {
	if cli.ParallelRenditions < 1 {
		return fmt.Errorf("parallel-renditions must be at least 1, got %d", cli.ParallelRenditions)
	}
	if cli.MaxInflightJobs < 1 {
		return fmt.Errorf("max-inflight-jobs must be at least 1, got %d", cli.MaxInflightJobs)
	}
	if cli.HLSTime < 1 {
		return fmt.Errorf("hls-time must be at least 1 second, got %d", cli.HLSTime)
	}
	if cli.ProbeTimeout <= 0 {
		return fmt.Errorf("probe-timeout must be positive, got %s", cli.ProbeTimeout)
	}
	if cli.CallbackURL != nil && cli.CallbackURL.String() != "" {
		if cli.CallbackURL.Scheme != "http" && cli.CallbackURL.Scheme != "https" {
			return fmt.Errorf("callback-url must be an http(s) URL, got %q", cli.CallbackURL.Redacted())
		}
	}
	return nil
}

// AddrFlag registers a host:port flag, rejecting anything net.SplitHostPort can't parse
func AddrFlag(fs *flag.FlagSet, dest *string, name, value, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		_, _, err := net.SplitHostPort(s)
		if err != nil {
			return err
		}
		*dest = s
		return nil
	})
}

type invertedBool struct {
	dest *bool
}

func (b invertedBool) String() string {
	if b.dest == nil {
		return "false"
	}
	return strconv.FormatBool(!*b.dest)
}

func (b invertedBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.dest = !v
	return nil
}

func (b invertedBool) IsBoolFlag() bool {
	return true
}

// InvertedBoolFlag registers "-no-<name>", which turns off a setting that defaults to on
func InvertedBoolFlag(fs *flag.FlagSet, dest *bool, name string, value bool, usage string) {
	*dest = value
	fs.Var(invertedBool{dest: dest}, fmt.Sprintf("no-%s", name), usage)
}

func parseURL(s string, dest **url.URL) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if _, err = url.ParseQuery(u.RawQuery); err != nil {
		return err
	}
	*dest = u
	return nil
}

func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, value, usage string) {
	if err := parseURL(value, dest); err != nil {
		panic(err)
	}
	fs.Func(name, usage, func(s string) error {
		return parseURL(s, dest)
	})
}
