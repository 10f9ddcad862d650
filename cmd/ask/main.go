package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/trialq/trialq/agent"
	"github.com/trialq/trialq/config"
	"github.com/trialq/trialq/tools"
	"github.com/trialq/trialq/trials"

	"github.com/charmbracelet/glamour"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

func main() {
	suitePath := flag.String("f", "", "YAML question suite to run instead of a single question")
	modelID := flag.String("m", "", "model identifier, overrides TRIALQ_API_MODEL")
	plain := flag.Bool("plain", false, "print answers without markdown rendering")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *modelID != "" {
		cfg.ApiModel = *modelID
	}

	client := trials.New(trials.Config{
		BaseURL:          cfg.RegistryBaseUrl,
		HTTPClient:       http.DefaultClient,
		MaxFacilities:    cfg.MaxFacilities,
		MaxSampleTitles:  cfg.MaxSampleTitles,
		DefaultMaxTrials: cfg.DefaultMaxTrials,
	})
	reg, err := tools.NewRegistry(
		tools.CountTrials{Client: client},
		tools.GetEligibilityCriteria{Client: client},
		tools.GetTrialLocations{Client: client},
		tools.GetTrialPhases{Client: client},
	)
	if err != nil {
		log.Fatalf("building tool registry: %v", err)
	}

	oc := openai.NewClient(
		option.WithAPIKey(cfg.ApiKey),
		option.WithBaseURL(cfg.ApiBaseUrl),
	)
	ag := agent.New(&oc, reg, cfg)

	if *suitePath != "" {
		questions, err := config.LoadQuestions(*suitePath)
		if err != nil {
			log.Fatalf("loading question suite: %v", err)
		}
		failed := 0
		for _, q := range questions {
			fmt.Printf("== %s: %s\n", q.ID, q.Text)
			if err := askOne(ag, cfg, q.Text, *plain); err != nil {
				log.Printf("question %s: %v", q.ID, err)
				failed++
			}
			fmt.Println()
		}
		fmt.Printf("total tokens used: %d\n", ag.TokenUsage())
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-plain] [-f suite.yaml] <question>")
		os.Exit(2)
	}
	if err := askOne(ag, cfg, question, *plain); err != nil {
		log.Fatal(err)
	}
}

func askOne(ag *agent.Agent, cfg *config.Config, question string, plain bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*time.Duration(cfg.LLMTimeOut))
	defer cancel()

	answer, err := ag.Ask(ctx, question)
	if err != nil {
		return err
	}

	if !plain {
		if r, rerr := glamour.NewTermRenderer(glamour.WithAutoStyle()); rerr == nil {
			if out, rerr := r.Render(answer); rerr == nil {
				fmt.Print(out)
				return nil
			}
		}
	}
	fmt.Println(answer)
	return nil
}
