package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"
	"github.com/vedran77/orbit/internal/client"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/location"
)

const TrackerVersion = "0.1.0"

func main() {
	usage := `Orbit location tracker.

Samples the device position and publishes it to the orbit API.

Usage:
    tracker run [--api_url=<api_url>] (--token=<token> | --email=<email> --password=<password>)
        (--gps_url=<gps_url> | --lat=<lat> --lon=<lon>)
        [--interval=<interval>] [--timeout=<timeout>]
    tracker once [--api_url=<api_url>] (--token=<token> | --email=<email> --password=<password>)
        (--gps_url=<gps_url> | --lat=<lat> --lon=<lon>)
        [--timeout=<timeout>]
    tracker -h | --help
    tracker --version

Options:
    -h --help                 Show this screen.
    --version                 Show version.
    --api_url=<api_url>       API base url [default: http://localhost:8080].
    --token=<token>           Access token from a previous login.
    --email=<email>
    --password=<password>
    --gps_url=<gps_url>       GPS bridge endpoint returning the current fix.
    --lat=<lat>               Fixed latitude.
    --lon=<lon>               Fixed longitude.
    --interval=<interval>     Sampling interval [default: 60s].
    --timeout=<timeout>       Wait for a fix at most this long [default: 10s].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], TrackerVersion)
	if err != nil {
		panic(err)
	}

	flag.Set("logtostderr", "true")
	flag.CommandLine.Parse(nil)
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		glog.Flush()
		fmt.Fprintf(os.Stderr, "tracker: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts docopt.Opts) error {
	apiURL, _ := opts.String("--api_url")
	api := client.New(apiURL)

	if token, err := opts.String("--token"); err == nil && token != "" {
		api.SetToken(token)
	} else {
		email, _ := opts.String("--email")
		password, _ := opts.String("--password")
		if err := api.Login(ctx, email, password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	positioner, err := positionerFrom(opts)
	if err != nil {
		return err
	}

	timeout, err := durationOpt(opts, "--timeout")
	if err != nil {
		return err
	}

	interval := location.DefaultInterval
	if s, _ := opts.String("--interval"); s != "" {
		if interval, err = durationOpt(opts, "--interval"); err != nil {
			return err
		}
	}

	sampler := location.NewSampler(positioner, api, location.Options{
		Interval: interval,
		Timeout:  timeout,
		OnSample: func(loc domain.Location) {
			glog.Infof("[tracker]fix %.6f,%.6f at %s", loc.Latitude, loc.Longitude, loc.Timestamp.Format(time.RFC3339))
		},
	})

	if once, _ := opts.Bool("once"); once {
		_, err := sampler.SampleOnce(ctx)
		return err
	}

	sampler.Start(ctx)
	<-ctx.Done()
	sampler.Stop()
	return nil
}

func positionerFrom(opts docopt.Opts) (location.Positioner, error) {
	if gpsURL, err := opts.String("--gps_url"); err == nil && gpsURL != "" {
		return &location.HTTPPositioner{URL: gpsURL}, nil
	}

	latStr, _ := opts.String("--lat")
	lonStr, _ := opts.String("--lon")
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --lat %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --lon %q", lonStr)
	}
	if !(domain.Location{Latitude: lat, Longitude: lon}).Valid() {
		return nil, fmt.Errorf("invalid coordinates %s,%s", latStr, lonStr)
	}
	return location.Static{Latitude: lat, Longitude: lon}, nil
}

func durationOpt(opts docopt.Opts, name string) (time.Duration, error) {
	s, _ := opts.String(name)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return d, nil
}
