package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/trezcool/sciencegpt/core/llm"
	"github.com/trezcool/sciencegpt/core/tutor"
)

func (cli *commandLine) providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Print the status of the LLM providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := cli.requireGateway()
			if err != nil {
				return err
			}
			status := gw.ProviderStatus()
			for _, p := range llm.Providers {
				st := status[p]
				if !st.Available {
					cli.printf("%-10s not configured\n", p)
					continue
				}
				cli.printf("%-10s %-22s circuit %-9s requests %d/%d per min\n",
					p, st.Config.Model, st.Circuit, st.RecentRequests, st.Config.RequestsPerMinute)
			}
			return nil
		},
	}
}

func (cli *commandLine) cleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the chat sessions older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := cli.tutorSvc.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			cli.printf("deleted %s sessions\n", humanize.Comma(n))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", tutor.DefaultRetentionDays, "retention in days")
	return cmd
}

func (cli *commandLine) askCmd() *cobra.Command {
	var question, reqType string
	var noCache bool
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask the tutor a question without recording it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := llm.RequestType(strings.ToLower(strings.TrimSpace(reqType)))
			if !slices.Contains(llm.RequestTypes, rt) {
				return fmt.Errorf("--type must be one of %v", llm.RequestTypes)
			}
			gw, err := cli.requireGateway()
			if err != nil {
				return err
			}
			resp, err := gw.Generate(cmd.Context(), question, llm.Context{}, rt, !noCache)
			if err != nil {
				return err
			}
			cli.printf("%s\n\n-- %s/%s, %d tokens, %dms, cached: %t\n",
				resp.Content, resp.Provider, resp.Model, resp.TokensUsed, resp.ResponseTimeMS, resp.Cached)
			return nil
		},
	}
	cmd.Flags().StringVar(&question, "question", "", "the question")
	cmd.Flags().StringVar(&reqType, "type", string(llm.RequestGeneral), "the request type (general, complex, creative, factual)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}
