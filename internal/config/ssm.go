package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParametersByPathAPI is the subset of the SSM client used to load secrets
type ParametersByPathAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// LoadSSMEnv exports every parameter under path as an environment variable
// named after the parameter's last path segment (/cnpj/prod/WAREHOUSE_DSN ->
// WAREHOUSE_DSN). Variables already set in the environment are kept.
func LoadSSMEnv(ctx context.Context, path, region string) (int, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return 0, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return ExportParameters(ctx, ssm.NewFromConfig(awsCfg), path)
}

// ExportParameters pages through path and sets the environment
func ExportParameters(ctx context.Context, client ParametersByPathAPI, path string) (int, error) {
	paginator := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		WithDecryption: aws.Bool(true),
		Recursive:      aws.Bool(true),
	})

	exported := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return exported, fmt.Errorf("unable to read parameters under %s: %w", path, err)
		}

		for _, param := range page.Parameters {
			name := aws.ToString(param.Name)
			key := name[strings.LastIndex(name, "/")+1:]
			if key == "" || os.Getenv(key) != "" {
				continue
			}
			if err := os.Setenv(key, aws.ToString(param.Value)); err != nil {
				return exported, fmt.Errorf("unable to set %s: %w", key, err)
			}
			exported++
		}
	}

	return exported, nil
}
