package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pelageech/fileserv/admin"
)

const (
	defaultHost   = "127.0.0.1:8081"
	defaultFile   = ""
	defaultSecret = ""
	defaultTTL    = time.Minute

	proto        = "http://"
	statsPath    = "/stats"
	metricsPath  = "/metrics"
	tokenSubject = "admin_app"
)

var (
	host        = flag.String("h", defaultHost, "host:port of the admin API without protocol")
	file        = flag.String("file", defaultFile, "print the counters of one requested file instead of all")
	showMetrics = flag.Bool("metrics", false, "print Prometheus metrics instead of stats")
	secret      = flag.String("s", defaultSecret, "admin secret used to sign a token, FILESERV_ADMIN_SECRET by default")
	ttl         = flag.Duration("ttl", defaultTTL, "lifetime of the signed token")

	c = &http.Client{Timeout: 10 * time.Second}
)

func fetch(path string) error {
	req, err := http.NewRequest(http.MethodGet, proto+*host+path, nil)
	if err != nil {
		return fmt.Errorf("an error occurred while creating a request: %w", err)
	}

	if *secret != "" {
		token, err := admin.NewToken([]byte(*secret), tokenSubject, *ttl)
		if err != nil {
			return fmt.Errorf("failed to sign a token: %w", err)
		}
		req.Header.Add("Authorization", "Bearer "+token)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("an error occurred while processing the request: %w", err)
	}

	return handleResponse(resp)
}

func handleResponse(resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("401 Unauthorized")
	}

	b, _ := io.ReadAll(resp.Body) // returns an empty slice on error
	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	fmt.Println(string(b))
	return nil
}

func main() {
	flag.Parse()

	if *host == "" {
		fmt.Println("Host is not defined!")
		flag.Usage()
		return
	}

	if *secret == defaultSecret {
		*secret = os.Getenv("FILESERV_ADMIN_SECRET")
	}

	path := statsPath
	switch {
	case *showMetrics:
		path = metricsPath
	case *file != defaultFile:
		path = statsPath + "/" + *file
	}

	if err := fetch(path); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
