package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"pigeon/pkg/models"
)

// Evaluator compiles and evaluates audience filter expressions against
// recipient profiles.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("email", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("subscribed", cel.BoolType),
		cel.Variable("engagement_score", cel.DoubleType),
		cel.Variable("subscribed_at", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

// ValidateAudienceExpression checks that the expression compiles and
// yields a bool, so it can be rejected at campaign save time instead of
// failing during send.
func (e *Evaluator) ValidateAudienceExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("audience expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateAudience reports whether the recipient matches the filter
// expression.
func (e *Evaluator) EvaluateAudience(ctx context.Context, expression string, r models.Recipient) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("audience expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.ContextEval(ctx, e.recipientVars(r))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// FilterAudience returns the subset of recipients matching the
// expression. An empty expression matches everyone.
func (e *Evaluator) FilterAudience(ctx context.Context, expression string, recipients []models.Recipient) ([]models.Recipient, error) {
	if expression == "" {
		return recipients, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("audience expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	matched := make([]models.Recipient, 0, len(recipients))
	for _, r := range recipients {
		result, _, err := program.ContextEval(ctx, e.recipientVars(r))
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate CEL expression for %s: %w", r.Email, err)
		}

		boolVal, ok := result.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
		}

		if boolVal {
			matched = append(matched, r)
		}
	}

	return matched, nil
}

func (e *Evaluator) recipientVars(r models.Recipient) map[string]interface{} {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}

	attrs := r.Attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	return map[string]interface{}{
		"email":            r.Email,
		"name":             r.Name,
		"tags":             tags,
		"attributes":       attrs,
		"subscribed":       r.Subscribed,
		"engagement_score": r.EngagementScore,
		"subscribed_at":    r.SubscribedAt,
	}
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}
