package config

import (
	"flag"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddrFlag(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	var addr string
	AddrFlag(fs, &addr, "addr", "0.0.0.0:5000", "")
	require.Equal(t, "0.0.0.0:5000", addr)
	err := fs.Parse([]string{
		"-addr=0.0.0.0:1935",
	})
	require.NoError(t, err)
	require.Equal(t, addr, "0.0.0.0:1935")

	fs2 := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	AddrFlag(fs2, &addr, "addr", "0.0.0.0:5000", "")
	err2 := fs2.Parse([]string{
		"-addr=nope",
	})
	require.Error(t, err2)
}

func TestInvertedBoolFlag(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	var deleteSource, keepDefault bool
	InvertedBoolFlag(fs, &deleteSource, "delete-source", true, "")
	InvertedBoolFlag(fs, &keepDefault, "other", true, "")
	err := fs.Parse([]string{
		"-no-delete-source",
	})
	require.NoError(t, err)
	require.False(t, deleteSource)
	require.True(t, keepDefault)

	fs2 := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	InvertedBoolFlag(fs2, &deleteSource, "delete-source", true, "")
	require.NoError(t, fs2.Parse([]string{"-no-delete-source=false"}))
	require.True(t, deleteSource)
}

func TestURLVarFlag(t *testing.T) {
	fs := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	var prefix, callback *url.URL
	URLVarFlag(fs, &prefix, "public-url-prefix", DefaultPublicURLPrefix, "")
	URLVarFlag(fs, &callback, "callback-url", "", "")
	require.NoError(t, fs.Parse([]string{"-callback-url=https://hooks.example.com/hls?token=abc"}))
	require.Equal(t, "/upload/videos", prefix.String())
	require.Equal(t, "hooks.example.com", callback.Host)
	require.Equal(t, "abc", callback.Query().Get("token"))

	fs2 := flag.NewFlagSet("cli-test", flag.ContinueOnError)
	URLVarFlag(fs2, &callback, "callback-url", "", "")
	require.Error(t, fs2.Parse([]string{"-callback-url=https://hooks.example.com/?a=%zz"}))
}

func validCli() Cli {
	return Cli{
		ParallelRenditions: 1,
		MaxInflightJobs:    2,
		HLSTime:            DefaultHLSTime,
		ProbeTimeout:       time.Minute,
	}
}

func TestValidate(t *testing.T) {
	cli := validCli()
	require.NoError(t, cli.Validate())

	cli = validCli()
	cli.ParallelRenditions = 0
	require.ErrorContains(t, cli.Validate(), "parallel-renditions")

	cli = validCli()
	cli.MaxInflightJobs = 0
	require.ErrorContains(t, cli.Validate(), "max-inflight-jobs")

	cli = validCli()
	cli.CallbackURL, _ = url.Parse("ftp://hooks.example.com")
	require.ErrorContains(t, cli.Validate(), "callback-url")

	cli = validCli()
	cli.CallbackURL, _ = url.Parse("")
	require.NoError(t, cli.Validate())
}

func TestOneShot(t *testing.T) {
	cli := Cli{}
	require.False(t, cli.OneShot())
	cli.Input = "movie.mp4"
	require.True(t, cli.OneShot())
}
