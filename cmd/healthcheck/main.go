package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"referral-tg-admin/pkg/adminclient"
)

func main() {
	url := pflag.StringP("url", "u", "http://localhost:5000", "admin API base URL")
	timeout := pflag.DurationP("timeout", "t", 5*time.Second, "request timeout")
	pflag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	health, err := adminclient.NewClient(*url, "", "", logger).Health(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		os.Exit(1)
	}
	if health.Status != "ok" {
		fmt.Fprintf(os.Stderr, "unhealthy: status %q\n", health.Status)
		os.Exit(1)
	}

	fmt.Printf("ok (%s)\n", health.Time)
}
