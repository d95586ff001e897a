package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/decl"
)

var policyFile string

var policyCmd = &cobra.Command{
	Use:   "policy-check DOCFILE",
	Short: "Check an emitted document against policy rules",
	Long: `Evaluates an emitted document against policy rules defined in a JSON
policy file.

Policy rules can enforce constraints like:
  - Buckets must enable versioning
  - All resources must carry labels
  - Certain resource types are not allowed

Example policy file:
  {
    "rules": [
      {
        "name": "standard-storage-only",
        "description": "Buckets must use STANDARD storage",
        "resource_type": "google_storage_bucket",
        "condition": "property_equals",
        "property": "storage_class",
        "value": "STANDARD",
        "severity": "error"
      }
    ]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyCheck,
}

func init() {
	policyCmd.Flags().StringVarP(&policyFile, "policy", "p", ".groundplan/policies.json", "Path to policy file")
}

// PolicyFile represents a collection of policy rules.
type PolicyFile struct {
	Rules []PolicyRule `json:"rules"`
}

// PolicyRule defines a single policy check.
type PolicyRule struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ResourceType string `json:"resource_type"` // empty = all types
	Condition    string `json:"condition"`     // deny_resource_type, property_equals, property_not_equals, require_property
	Property     string `json:"property"`
	Value        string `json:"value"`
	Severity     string `json:"severity"` // "error", "warning"
}

// PolicyViolation represents a policy check failure.
type PolicyViolation struct {
	Rule     PolicyRule
	Resource string
	Message  string
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	docData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read document file: %w", err)
	}

	doc, err := decl.DecodeDocument(docData)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	policyData, err := os.ReadFile(policyFile)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", policyFile, err)
	}

	var policies PolicyFile
	if err := json.Unmarshal(policyData, &policies); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	violations := evaluatePolicies(doc, &policies)

	errors := 0
	warnings := 0

	for _, v := range violations {
		severity := strings.ToUpper(v.Rule.Severity)
		if severity == "" || severity == "ERROR" {
			errors++
			fmt.Printf("%s[ERROR]%s %s: %s\n", colorize("\033[31m"), colorize("\033[0m"), v.Rule.Name, v.Message)
		} else {
			warnings++
			fmt.Printf("%s[WARN]%s %s: %s\n", colorize("\033[33m"), colorize("\033[0m"), v.Rule.Name, v.Message)
		}
	}

	fmt.Printf("\nPolicy check complete: %d error(s), %d warning(s)\n", errors, warnings)

	if errors > 0 {
		return fmt.Errorf("policy check failed with %d error(s)", errors)
	}
	return nil
}

// resourceType extracts the type segment of a document resource address.
func resourceType(addr string) string {
	typ, _, _ := strings.Cut(addr, ".")
	return typ
}

func evaluatePolicies(doc *decl.Document, policies *PolicyFile) []PolicyViolation {
	var violations []PolicyViolation

	for _, rule := range policies.Rules {
		for _, addr := range sortedDocKeys(doc.Resources) {
			typ := resourceType(addr)
			if rule.ResourceType != "" && typ != rule.ResourceType {
				continue
			}
			attrs := doc.Resources[addr]

			switch rule.Condition {
			case "deny_resource_type":
				if typ == rule.Value {
					violations = append(violations, PolicyViolation{
						Rule:     rule,
						Resource: addr,
						Message:  fmt.Sprintf("Resource %s: type %s is denied by policy %q", addr, typ, rule.Description),
					})
				}

			case "property_equals":
				if val, ok := attrs[rule.Property]; ok {
					if fmt.Sprintf("%v", val) == rule.Value {
						violations = append(violations, PolicyViolation{
							Rule:     rule,
							Resource: addr,
							Message:  fmt.Sprintf("Resource %s: property %s=%v violates policy %q", addr, rule.Property, val, rule.Description),
						})
					}
				}

			case "property_not_equals":
				if val, ok := attrs[rule.Property]; ok {
					if fmt.Sprintf("%v", val) != rule.Value {
						violations = append(violations, PolicyViolation{
							Rule:     rule,
							Resource: addr,
							Message:  fmt.Sprintf("Resource %s: property %s=%v violates policy %q (expected %s)", addr, rule.Property, val, rule.Description, rule.Value),
						})
					}
				}

			case "require_property":
				if _, ok := attrs[rule.Property]; !ok {
					violations = append(violations, PolicyViolation{
						Rule:     rule,
						Resource: addr,
						Message:  fmt.Sprintf("Resource %s: missing required property %q per policy %q", addr, rule.Property, rule.Description),
					})
				}
			}
		}
	}

	return violations
}
