// Command cortexchat is a console chat client for a configured
// Cortex agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/manifoldco/promptui"

	"github.com/mkessler/cortexagent/pkg/callbacks"
	"github.com/mkessler/cortexagent/pkg/config"
	"github.com/mkessler/cortexagent/pkg/cortex"
	"github.com/mkessler/cortexagent/pkg/session"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	conn, err := cfg.Connection()
	if err != nil {
		log.Fatal(err)
	}
	agentConfig, err := cfg.Configuration()
	if err != nil {
		log.Fatal(err)
	}

	sess, err := session.New("cortexchat")
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()
	if sess.ID() != "" {
		log.Printf("Session: %s", sess.ID())
	}

	logger, err := sess.GetLogger("agent")
	if err != nil {
		log.Fatal(err)
	}

	handler := cortex.NewAgentHandler(conn, agentConfig, logger)
	if history, err := sess.LoadHistory(); err == nil {
		handler.LoadMessages(history)
	} else {
		log.Printf("Failed to load history: %v", err)
	}

	console := callbacks.NewConsole(os.Stdout)
	summarizer, err := cortex.NewCompletionHandler(conn, agentConfig.Model, logger)
	if err != nil {
		log.Fatal(err)
	}
	console.Summarizer = summarizer

	p := promptui.Prompt{
		Label: "> ",
	}

	for {
		line, err := p.Run()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, promptui.ErrInterrupt) {
				break
			}
			log.Fatal(err)
		}
		if line == "" {
			continue
		}
		if line == "\\q" {
			break
		}

		before := handler.Messages().Len()
		for r, err := range handler.Send(ctx, line) {
			if err != nil {
				var te *cortex.TransportError
				if errors.As(err, &te) {
					fmt.Fprintf(os.Stderr, "request failed: %v\n", te)
					break
				}
				log.Fatal(err)
			}
			if err := console.Handle(ctx, r); err != nil {
				log.Printf("render error: %v", err)
			}
		}
		appended := handler.Messages().Snapshot()[before:]
		if err := sess.AppendHistory(appended); err != nil {
			log.Printf("Failed to save history: %v", err)
		}
	}
}
