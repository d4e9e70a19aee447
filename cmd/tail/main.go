package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/gateway"
)

func main() {
	_ = godotenv.Load()

	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL")
	stream := flag.String("stream", gateway.DefaultStream, "notification stream name")
	from := flag.String("from", "$", "stream id to start after ($ for new only, 0 for all)")
	flag.Parse()

	if *redisURL == "" {
		fmt.Fprintln(os.Stderr, "a Redis URL is required (-redis or REDIS_URL)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay, err := gateway.NewStreamRelay(ctx, *redisURL, *stream, 0, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer relay.Close()

	fmt.Printf("Following %s (Ctrl-C to stop)\n", *stream)
	for n := range relay.Tail(ctx, *from) {
		fmt.Printf("\n\033[36m[%s]\033[0m %s \033[90m(%s)\033[0m\n",
			n.CreatedAt.Local().Format("15:04:05"), n.Title, n.Status)
		if n.Message != "" {
			fmt.Println(n.Message)
		}
		for _, l := range n.Links {
			fmt.Printf("  %s: %s\n", l.Label, l.URL)
		}
	}
}
