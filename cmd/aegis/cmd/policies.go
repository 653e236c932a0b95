package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aegis-gate/aegis/internal/config"
	"github.com/aegis-gate/aegis/internal/domain/policy"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Inspect and validate policies",
}

var policiesListFlags struct {
	tenant string
	asJSON bool
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective policies for a tenant",
	Long: `List the policies a tenant would be evaluated against, in
evaluation order: priority descending, creation order as tiebreak.
Includes built-in and declarative policies from the config file.`,
	RunE: runPoliciesList,
}

var policiesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a YAML policies file",
	Long: `Parse and validate a standalone YAML file containing a policies
list, without loading the engine. The file uses the same schema as the
policies section of aegis.yaml:

  policies:
    - tenant: t1
      name: doc-readers
      rules:
        - effect: allow
          actors: [{type: user, pattern: "*"}]
          resources: ["doc:*"]
          actions: [read]`,
	Args: cobra.ExactArgs(1),
	RunE: runPoliciesValidate,
}

func init() {
	policiesListCmd.Flags().StringVar(&policiesListFlags.tenant, "tenant", "", "tenant ID (required)")
	policiesListCmd.Flags().BoolVar(&policiesListFlags.asJSON, "json", false, "print policies as JSON")
	_ = policiesListCmd.MarkFlagRequired("tenant")

	policiesCmd.AddCommand(policiesListCmd)
	policiesCmd.AddCommand(policiesValidateCmd)
	rootCmd.AddCommand(policiesCmd)
}

func runPoliciesList(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	policies, err := eng.policies.ListByTenant(cmd.Context(), policiesListFlags.tenant)
	if err != nil {
		return err
	}

	if policiesListFlags.asJSON {
		out, err := json.MarshalIndent(policies, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(policies) == 0 {
		fmt.Printf("no policies for tenant %s\n", policiesListFlags.tenant)
		return nil
	}
	for _, p := range policies {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-36s  prio %3d  %-8s  %s (%d rules)\n",
			p.ID, p.Priority, state, p.Name, len(p.Rules))
	}
	return nil
}

// policiesFile is the schema of a standalone policies YAML file.
type policiesFile struct {
	Policies []config.PolicyConfig `yaml:"policies"`
}

func runPoliciesValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var file policiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%s: invalid YAML: %w", args[0], err)
	}
	if len(file.Policies) == 0 {
		return fmt.Errorf("%s: no policies found", args[0])
	}

	for i, pc := range file.Policies {
		in, err := pc.ToCreateInput()
		if err != nil {
			return fmt.Errorf("%s: policies[%d]: %w", args[0], i, err)
		}
		if in.TenantID == "" {
			return fmt.Errorf("%s: policies[%d]: tenant is required", args[0], i)
		}
		if in.Name == "" {
			return fmt.Errorf("%s: policies[%d]: name is required", args[0], i)
		}
		if err := policy.ValidateRules(in.Rules); err != nil {
			return fmt.Errorf("%s: policies[%d] (%s): %w", args[0], i, pc.Name, err)
		}
	}

	fmt.Printf("%s: %d policies OK\n", args[0], len(file.Policies))
	return nil
}
