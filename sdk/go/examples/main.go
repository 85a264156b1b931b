package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"infogenai/internal/api"
	"infogenai/internal/dispatch"
	"infogenai/pkg/plugin"
	"infogenai/sdk/go/infogenai"
)

// wordCounter is a minimal in-process agent.
type wordCounter struct{}

func (wordCounter) Description() string { return "Counts words in the article" }

func (wordCounter) Process(_ context.Context, article string) (any, error) {
	return map[string]int{"words": len(strings.Fields(article))}, nil
}

func main() {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := plugin.NewRegistry(plugin.WithLogger(quiet))
	if err := reg.Register("wordcount", wordCounter{}); err != nil {
		panic(err)
	}
	reg.Seal()

	d := dispatch.New(reg, dispatch.WithLogger(quiet, quiet))
	gateway := api.NewServer(api.Options{LegacyStatus: true}, d, reg, nil, quiet)

	srv := httptest.NewServer(gateway.Handler())
	defer srv.Close()

	client, err := infogenai.NewClient(srv.URL, infogenai.WithHTTPClient(srv.Client()))
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	agents, err := client.ListAgents(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Println(agents)

	analysis, err := client.Analyze(ctx, "Three word article")
	if err != nil {
		panic(err)
	}
	fmt.Printf("request %s results=%s\n", analysis.RequestID, analysis.Results["wordcount"])
}
