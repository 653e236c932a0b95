package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aegis-gate/aegis/internal/domain/policy"
)

var checkFlags struct {
	tenant    string
	actor     string
	actorType string
	resource  string
	action    string
	context   []string
	asJSON    bool
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a permission request",
	Long: `Evaluate a permission request against the configured policies.

The exit code is 0 when the request is allowed and 1 when it is denied,
so check composes with shell conditionals.

Context values are parsed as JSON where possible, so numbers, booleans,
and lists work: --context score=42 --context tags='["a","b"]'. Anything
that does not parse as JSON is taken as a plain string.

Examples:
  aegis check --tenant t1 --actor alice --resource doc:7 --action read
  aegis check --tenant t1 --actor agent-1 --actor-type agent \
    --resource task:42 --action execute --context role=operator`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkFlags.tenant, "tenant", "", "tenant ID (required)")
	checkCmd.Flags().StringVar(&checkFlags.actor, "actor", "", "actor ID (required)")
	checkCmd.Flags().StringVar(&checkFlags.actorType, "actor-type", "user", "actor type: user, agent, service, system")
	checkCmd.Flags().StringVar(&checkFlags.resource, "resource", "", "resource identifier (required)")
	checkCmd.Flags().StringVar(&checkFlags.action, "action", "", "action to check (required)")
	checkCmd.Flags().StringArrayVar(&checkFlags.context, "context", nil, "context attribute key=value (repeatable)")
	checkCmd.Flags().BoolVar(&checkFlags.asJSON, "json", false, "print the decision as JSON")
	for _, f := range []string{"tenant", "actor", "resource", "action"} {
		_ = checkCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reqContext, err := parseContextFlags(checkFlags.context)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}

	d, err := eng.perms.CheckWithDetails(cmd.Context(), checkFlags.tenant, policy.Request{
		ActorID:   checkFlags.actor,
		ActorType: policy.ActorType(checkFlags.actorType),
		Resource:  checkFlags.resource,
		Action:    policy.Action(checkFlags.action),
		Context:   reqContext,
	})
	closeErr := eng.Close(cmd.Context())
	if err != nil {
		return err
	}
	if closeErr != nil {
		eng.logger.Warn("engine shutdown", "error", closeErr)
	}

	if checkFlags.asJSON {
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		verdict := "DENIED"
		if d.Allowed {
			verdict = "ALLOWED"
		}
		fmt.Printf("%s: %s\n", verdict, d.Reason)
		if d.MatchedPolicy != "" {
			fmt.Printf("  policy: %s (rule %d)\n", d.MatchedPolicy, d.MatchedRule+1)
		}
	}

	if !d.Allowed {
		os.Exit(1)
	}
	return nil
}

// parseContextFlags converts repeated key=value flags into a typed
// request context.
func parseContextFlags(pairs []string) (policy.Context, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	raw := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --context value %q, expected key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(val), &decoded); err != nil {
			decoded = val
		}
		raw[key] = decoded
	}
	return policy.ContextFromAny(raw)
}
