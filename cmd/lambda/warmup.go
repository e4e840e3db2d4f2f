package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/sirupsen/logrus"
)

const (
	// WarmupSource identifies scheduled warmup events.
	WarmupSource = "warmup"

	// WarmupDelay keeps this instance busy long enough for the self-invoked
	// ones to land on other instances.
	WarmupDelay = 75 * time.Millisecond

	maxWarmupConcurrency = 10
)

// WarmupEvent is the scheduled event payload that keeps instances warm.
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse is returned for warmup events.
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// IsWarmupEvent reports whether event is a warmup event.
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var warmup WarmupEvent
	if err := json.Unmarshal(event, &warmup); err != nil {
		return nil, false
	}
	if warmup.Source != WarmupSource {
		return nil, false
	}
	if warmup.Concurrency < 0 {
		warmup.Concurrency = 0
	}
	if warmup.Concurrency > maxWarmupConcurrency {
		warmup.Concurrency = maxWarmupConcurrency
	}
	return &warmup, true
}

// HandleWarmup answers a warmup event, self-invoking Concurrency more
// instances when asked to.
func HandleWarmup(ctx context.Context, warmup *WarmupEvent, logger *logrus.Logger) (WarmupResponse, error) {
	instancesWarmed := 1

	if warmup.Concurrency > 0 {
		if err := selfInvoke(ctx, warmup.Concurrency); err != nil {
			logger.WithError(err).WithField("concurrency", warmup.Concurrency).Warn("Warmup self-invocation failed")
		} else {
			instancesWarmed += warmup.Concurrency
		}
	}

	time.Sleep(WarmupDelay)

	return WarmupResponse{Status: "warm", InstancesWarmed: instancesWarmed}, nil
}

// selfInvoke invokes this function count times asynchronously.
func selfInvoke(ctx context.Context, count int) error {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}

	client := lambdasdk.NewFromConfig(cfg)
	functionName := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")

	// Child invocations must not fan out again
	payload, err := json.Marshal(WarmupEvent{Source: WarmupSource})
	if err != nil {
		return err
	}

	var (
		wg        sync.WaitGroup
		errMu     sync.Mutex
		invokeErr error
	)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(functionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				errMu.Lock()
				if invokeErr == nil {
					invokeErr = err
				}
				errMu.Unlock()
			}
		}()
	}

	wg.Wait()
	return invokeErr
}
