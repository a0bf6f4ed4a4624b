package aws

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// ObjectAPI is the part of the S3 client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ParameterAPI is the part of the SSM client used here.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Clients struct {
	bucketName string
	region     string
	s3Client   ObjectAPI
	ssmClient  ParameterAPI
}

// Init loads the default AWS configuration for region. bucketName may be empty when
// image uploads are not used.
func Init(ctx context.Context, bucketName, region string) (*Clients, error) {
	if region == "" {
		return nil, errors.New("aws region not present")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws sdk config")
	}
	log.Infof("aws clients ready for region %s", region)
	return NewClients(bucketName, region, s3.NewFromConfig(cfg), ssm.NewFromConfig(cfg)), nil
}

func NewClients(bucketName, region string, s3Client ObjectAPI, ssmClient ParameterAPI) *Clients {
	return &Clients{
		bucketName: bucketName,
		region:     region,
		s3Client:   s3Client,
		ssmClient:  ssmClient,
	}
}

// GetParameter reads a decrypted parameter value from SSM Parameter Store.
func (s *Clients) GetParameter(ctx context.Context, paramName string) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: true,
	}
	out, err := s.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return "", errors.WrapAndReport(err, "query parameter from ssm")
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.Errorf("ssm parameter %s has no value", paramName)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// PutPublicObject uploads file readable by anyone and returns its public URL.
func (s *Clients) PutPublicObject(ctx context.Context, key, contentType string, file io.Reader) (string, error) {
	if s.bucketName == "" {
		return "", errors.New("s3 bucket not configured")
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
		Body:        file,
	}
	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return "", errors.WrapAndReport(err, "put object to s3")
	}
	return s.PublicS3AccessURLFrom(key), nil
}

func (s *Clients) DeleteObject(ctx context.Context, key string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}
	_, err := s.s3Client.DeleteObject(ctx, input)
	return errors.WrapAndReport(err, "delete s3 object")
}

const (
	httpsStr  = "https://"
	s3DotStr  = ".s3."
	amazonStr = ".amazonaws.com/"
)

func (s *Clients) PublicS3AccessURLFrom(key string) string {
	var buf bytes.Buffer
	buf.WriteString(httpsStr)
	buf.WriteString(s.bucketName)
	buf.WriteString(s3DotStr)
	buf.WriteString(s.region)
	buf.WriteString(amazonStr)
	buf.WriteString(key)
	return buf.String()
}
