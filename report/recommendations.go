// Package report pulls optimization recommendations from Cost
// Optimization Hub and exports them for spreadsheet review.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costoptimizationhub"
	cohtypes "github.com/aws/aws-sdk-go-v2/service/costoptimizationhub/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/costlens/costlens/telemetry"
	"github.com/costlens/costlens/types"
)

// Recommendation is one optimization suggestion for a resource.
type Recommendation struct {
	AccountID                  string      `json:"account_id"`
	ActionType                 string      `json:"action_type"`
	CurrencyCode               string      `json:"currency_code"`
	CurrentResourceSummary     string      `json:"current_resource_summary"`
	CurrentResourceType        string      `json:"current_resource_type"`
	EstimatedMonthlyCost       float64     `json:"estimated_monthly_cost"`
	EstimatedMonthlySavings    float64     `json:"estimated_monthly_savings"`
	EstimatedSavingsPercentage float64     `json:"estimated_savings_percentage"`
	ImplementationEffort       string      `json:"implementation_effort"`
	LastRefreshTimestamp       *time.Time  `json:"last_refresh_timestamp,omitempty"`
	RecommendationID           string      `json:"recommendation_id"`
	LookbackPeriodDays         int32       `json:"lookback_period_days"`
	RecommendedResourceSummary string      `json:"recommended_resource_summary"`
	RecommendedResourceType    string      `json:"recommended_resource_type"`
	Region                     string      `json:"region"`
	ResourceARN                string      `json:"resource_arn"`
	ResourceID                 string      `json:"resource_id"`
	RestartNeeded              bool        `json:"restart_needed"`
	RollbackPossible           bool        `json:"rollback_possible"`
	Source                     string      `json:"source"`
	Tags                       []types.Tag `json:"tags,omitempty"`
}

// HubAPI is the subset of the Cost Optimization Hub client we use.
type HubAPI interface {
	ListRecommendations(ctx context.Context, params *costoptimizationhub.ListRecommendationsInput, optFns ...func(*costoptimizationhub.Options)) (*costoptimizationhub.ListRecommendationsOutput, error)
}

// Hub lists recommendations across all pages.
type Hub struct {
	client HubAPI
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewHub creates a recommendations source.
func NewHub(client HubAPI) *Hub {
	return &Hub{
		client: client,
		logger: telemetry.NewLogger("recommendations-hub"),
		tracer: otel.Tracer("recommendations-hub"),
	}
}

// recommendationFilter covers every action type, effort, and resource
// type the export cares about.
func recommendationFilter() *cohtypes.Filter {
	return &cohtypes.Filter{
		ActionTypes: []cohtypes.ActionType{
			cohtypes.ActionTypeRightsize,
			cohtypes.ActionTypeStop,
			cohtypes.ActionTypeUpgrade,
			cohtypes.ActionTypePurchaseSavingsPlans,
			cohtypes.ActionTypePurchaseReservedInstances,
			cohtypes.ActionTypeMigrateToGraviton,
		},
		ImplementationEfforts: []cohtypes.ImplementationEffort{
			cohtypes.ImplementationEffortVeryLow,
			cohtypes.ImplementationEffortLow,
			cohtypes.ImplementationEffortMedium,
			cohtypes.ImplementationEffortHigh,
			cohtypes.ImplementationEffortVeryHigh,
		},
		ResourceTypes: []cohtypes.ResourceType{
			cohtypes.ResourceTypeEc2Instance,
			cohtypes.ResourceTypeLambdaFunction,
			cohtypes.ResourceTypeEbsVolume,
			cohtypes.ResourceTypeEcsService,
			cohtypes.ResourceTypeEc2AutoScalingGroup,
			cohtypes.ResourceTypeEc2InstanceSavingsPlans,
			cohtypes.ResourceTypeComputeSavingsPlans,
			cohtypes.ResourceTypeSageMakerSavingsPlans,
			cohtypes.ResourceTypeEc2ReservedInstances,
			cohtypes.ResourceTypeRdsReservedInstances,
			cohtypes.ResourceTypeOpenSearchReservedInstances,
			cohtypes.ResourceTypeRedshiftReservedInstances,
			cohtypes.ResourceTypeElastiCacheReservedInstances,
		},
	}
}

// List pulls every recommendation page.
func (h *Hub) List(ctx context.Context) ([]Recommendation, error) {
	ctx, span := h.tracer.Start(ctx, "ListRecommendations")
	defer span.End()

	var out []Recommendation
	var nextToken *string

	for {
		page, err := h.client.ListRecommendations(ctx, &costoptimizationhub.ListRecommendationsInput{
			Filter:                    recommendationFilter(),
			IncludeAllRecommendations: true,
			NextToken:                 nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list recommendations: %w", err)
		}

		for _, item := range page.Items {
			out = append(out, convertRecommendation(item))
		}

		nextToken = page.NextToken
		if nextToken == nil {
			break
		}
	}

	h.logger.WithContext(ctx).Info().
		Int("recommendations", len(out)).
		Msg("recommendations listed")

	return out, nil
}

func convertRecommendation(item cohtypes.Recommendation) Recommendation {
	rec := Recommendation{
		AccountID:                  aws.ToString(item.AccountId),
		ActionType:                 aws.ToString(item.ActionType),
		CurrencyCode:               aws.ToString(item.CurrencyCode),
		CurrentResourceSummary:     aws.ToString(item.CurrentResourceSummary),
		CurrentResourceType:        aws.ToString(item.CurrentResourceType),
		EstimatedMonthlyCost:       aws.ToFloat64(item.EstimatedMonthlyCost),
		EstimatedMonthlySavings:    aws.ToFloat64(item.EstimatedMonthlySavings),
		EstimatedSavingsPercentage: aws.ToFloat64(item.EstimatedSavingsPercentage),
		ImplementationEffort:       aws.ToString(item.ImplementationEffort),
		LastRefreshTimestamp:       item.LastRefreshTimestamp,
		RecommendationID:           aws.ToString(item.RecommendationId),
		LookbackPeriodDays:         aws.ToInt32(item.RecommendationLookbackPeriodInDays),
		RecommendedResourceSummary: aws.ToString(item.RecommendedResourceSummary),
		RecommendedResourceType:    aws.ToString(item.RecommendedResourceType),
		Region:                     aws.ToString(item.Region),
		ResourceARN:                aws.ToString(item.ResourceArn),
		ResourceID:                 aws.ToString(item.ResourceId),
		RestartNeeded:              aws.ToBool(item.RestartNeeded),
		RollbackPossible:           aws.ToBool(item.RollbackPossible),
		Source:                     string(item.Source),
	}

	for _, tag := range item.Tags {
		rec.Tags = append(rec.Tags, types.Tag{
			Key:   aws.ToString(tag.Key),
			Value: aws.ToString(tag.Value),
		})
	}

	return rec
}
