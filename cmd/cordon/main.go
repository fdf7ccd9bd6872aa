package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"

	"github.com/cordonlabs/cordon/internal/config"
	"github.com/cordonlabs/cordon/internal/logging"
	"github.com/cordonlabs/cordon/internal/sandbox"
)

type output struct {
	Script     string             `json:"script,omitempty"`
	Value      interface{}        `json:"value"`
	Console    []sandbox.LogEntry `json:"console,omitempty"`
	DurationMS float64            `json:"duration_ms"`
	Error      string             `json:"error,omitempty"`
}

func main() {
	scriptPath := flag.String("script", "", "Script file to evaluate (default: stdin)")
	policyPath := flag.String("policy", "", "YAML policy file (deny list + endowments)")
	timeout := flag.Duration("timeout", 0, "Evaluation timeout override")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *timeout > 0 {
		cfg.Sandbox.Timeout = *timeout
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	opts := []sandbox.Option{sandbox.WithLogger(logger)}
	if *policyPath != "" {
		if flag.NArg() > 1 {
			// A policy pins one outer runtime; goja runtimes are not
			// safe for concurrent batch use.
			log.Fatal("a policy cannot be combined with multiple scripts")
		}
		pol, err := loadPolicy(*policyPath)
		if err != nil {
			log.Fatalf("Failed to load policy: %v", err)
		}
		outer := goja.New()
		dist, err := pol.distortionsFor(outer)
		if err != nil {
			log.Fatalf("Failed to apply policy: %v", err)
		}
		opts = append(opts,
			sandbox.WithOuterRuntime(outer),
			sandbox.WithDistortions(dist),
			sandbox.WithEndowments(pol.endowments(outer)),
		)
	}

	sbCfg := sandbox.Config{
		Timeout:          cfg.Sandbox.Timeout,
		MaxCallStackSize: cfg.Sandbox.MaxCallStack,
		EnableConsole:    cfg.Sandbox.EnableConsole,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flag.NArg() > 1 {
		if err := runBatch(ctx, sbCfg, cfg.Sandbox.PoolSize, opts, flag.Args()); err != nil {
			log.Fatalf("Batch evaluation failed: %v", err)
		}
		return
	}

	path := *scriptPath
	if path == "" && flag.NArg() == 1 {
		path = flag.Arg(0)
	}
	src, err := readScript(path)
	if err != nil {
		log.Fatalf("Failed to read script: %v", err)
	}

	sb, err := sandbox.New(sbCfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create sandbox: %v", err)
	}
	defer sb.Close()

	res, evalErr := sb.Evaluate(ctx, src)
	if res == nil {
		log.Fatalf("Evaluation aborted: %v", evalErr)
	}
	printJSON(resultOutput("", res, evalErr))

	if evalErr != nil && !errors.Is(evalErr, context.Canceled) {
		os.Exit(1)
	}
}

// runBatch evaluates each script in its own pooled sandbox and prints
// one JSON array of results, in argument order.
func runBatch(ctx context.Context, cfg sandbox.Config, size int, opts []sandbox.Option, paths []string) error {
	pool, err := sandbox.NewPool(cfg, size, opts...)
	if err != nil {
		return err
	}
	defer pool.Close()

	outs := make([]output, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			src, err := readScript(path)
			if err != nil {
				outs[i] = output{Script: path, Error: err.Error()}
				return
			}
			res, evalErr := pool.Execute(ctx, src)
			if res == nil {
				outs[i] = output{Script: path, Error: evalErr.Error()}
				return
			}
			outs[i] = resultOutput(path, res, evalErr)
		}(i, path)
	}
	wg.Wait()

	printJSON(outs)
	return nil
}

func resultOutput(script string, res *sandbox.Result, evalErr error) output {
	out := output{
		Script:     script,
		Value:      res.Value,
		Console:    res.Console,
		DurationMS: float64(res.Duration) / float64(time.Millisecond),
	}
	if evalErr != nil {
		out.Error = evalErr.Error()
	}
	return out
}

func printJSON(v interface{}) {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(data))
}

func readScript(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
