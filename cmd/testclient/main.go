// testclient exercises a running Babel AI gateway from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dasmlab/babel/pkg/aitask"
	"github.com/dasmlab/babel/pkg/client"
	"github.com/dasmlab/babel/pkg/config"
	"github.com/dasmlab/babel/pkg/language"
	"github.com/dasmlab/babel/pkg/translation"
)

// Global flags
var (
	configPath string
	endpoint   string
	timeout    time.Duration
	logLevel   string
)

var logger = logrus.New()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "testclient",
		Short: "Send AI tasks to a Babel gateway",
		Long: `testclient sends translate, explain, tone and smart reply tasks to a
Babel AI gateway and prints the JSON result.

Commands:
  translate   Translate text, optionally from several concurrent callers
  explain     Explain the meaning of text
  tone        Rewrite text in a formal, neutral or casual style
  replies     Suggest short replies to a conversation
  detect      Detect the language of text locally`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&endpoint, "endpoint", "", "AI endpoint URL (overrides client.endpoint)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (overrides client.timeout)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newTranslateCmd(),
		newExplainCmd(),
		newToneCmd(),
		newRepliesCmd(),
		newDetectCmd(),
	)
	return root
}

func main() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		logger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// loadClientConfig loads configuration and applies the global flags.
func loadClientConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if endpoint != "" {
		cfg.Client.Endpoint = endpoint
	}
	if timeout > 0 {
		cfg.Client.Timeout = timeout
	}
	return cfg, nil
}

func newClient() (*client.Client, *config.Config, error) {
	cfg, err := loadClientConfig()
	if err != nil {
		return nil, nil, err
	}
	return client.New(cfg.Client.Endpoint, cfg.Client.Timeout, logger), cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTranslateCmd() *cobra.Command {
	var (
		target    string
		source    string
		messageID string
		callers   int
	)

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate text through the translation cache",
		Long: `Translate text through the client translation cache.

With --callers greater than one, every caller asks for the same message at
once and only one request reaches the gateway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := newClient()
			if err != nil {
				return err
			}
			if callers < 1 {
				callers = 1
			}

			store := translation.NewStore(nil, logger, translation.WithTTL(cfg.Client.CacheTTL))
			coord := translation.NewCoordinator(store, c, logger)
			key := translation.CacheKey{MessageID: messageID, TargetLanguage: strings.ToLower(target)}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.Timeout)
			defer cancel()

			var (
				wg      sync.WaitGroup
				entries = make([]translation.Entry, callers)
				errs    = make([]error, callers)
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					entries[i], errs[i] = coord.Await(ctx, key, args[0], source, key.TargetLanguage)
				}(i)
			}
			wg.Wait()
			coord.Wait()

			if err := errors.Join(errs...); err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"callers":      callers,
				"cached_items": store.Len(),
			}).Info("Translation complete")

			entry := entries[0]
			return printJSON(aitask.TranslateResult{
				Translation:      entry.Translation,
				DetectedLanguage: entry.DetectedLanguage,
				Quality:          entry.Quality,
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", "en", "Target language code")
	cmd.Flags().StringVar(&source, "source", "", "Source language hint")
	cmd.Flags().StringVar(&messageID, "message-id", "cli", "Message ID used as the cache key")
	cmd.Flags().IntVar(&callers, "callers", 1, "Number of concurrent callers")
	return cmd
}

func newExplainCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "explain <text>",
		Short: "Explain the meaning of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := newClient()
			if err != nil {
				return err
			}
			result, err := c.Explain(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&target, "target", "en", "Language of the explanation")
	return cmd
}

func newToneCmd() *cobra.Command {
	var (
		target string
		style  string
	)

	cmd := &cobra.Command{
		Use:   "tone <text>",
		Short: "Rewrite text in another tone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toneStyle, err := aitask.ParseToneStyle(style)
			if err != nil {
				return err
			}
			c, _, err := newClient()
			if err != nil {
				return err
			}
			result, err := c.Rewrite(cmd.Context(), args[0], target, toneStyle)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&target, "target", "en", "Language of the rewrite")
	cmd.Flags().StringVar(&style, "style", "neutral", "Tone: formal, neutral or casual")
	return cmd
}

func newRepliesCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "replies <role:text>...",
		Short: "Suggest replies to a conversation",
		Long: `Suggest replies to a conversation given oldest first.

Each argument is one message prefixed with its role, for example:
  testclient replies "other:Hola, ¿cómo estás?" "user:Bien" "other:¿Vienes mañana?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := parseHistory(args)
			if err != nil {
				return err
			}
			c, _, err := newClient()
			if err != nil {
				return err
			}
			result, err := c.SmartReplies(cmd.Context(), history, target)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&target, "target", "en", "Language of the suggestions")
	return cmd
}

// parseHistory parses role:text arguments into reply context.
func parseHistory(args []string) ([]aitask.ReplyContextMessage, error) {
	history := make([]aitask.ReplyContextMessage, 0, len(args))
	for _, arg := range args {
		role, text, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("message %q must be role:text", arg)
		}
		switch aitask.Role(role) {
		case aitask.RoleUser, aitask.RoleOther:
		default:
			return nil, fmt.Errorf("role %q must be user or other", role)
		}
		history = append(history, aitask.ReplyContextMessage{Role: aitask.Role(role), Text: text})
	}
	return history, nil
}

func newDetectCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "detect <text>",
		Short: "Detect the language of text locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matcher := language.NewMatcher(language.NewLinguaDetector(), logger)
			detected, ok := matcher.Detect(args[0])
			if !ok {
				return errors.New("language could not be detected")
			}
			return printJSON(map[string]any{
				"language":        detected,
				"target":          target,
				"shouldTranslate": language.ShouldTranslate(detected, target),
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", "en", "Language to compare against")
	return cmd
}
