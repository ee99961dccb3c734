// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

// S3Store keeps one JSON object per mapping, at <prefix>/<db>/<coll>.json.
// It lets several hosts share checkpoint state without a local file.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	runID  string
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3-backed store using the default AWS credential
// chain. Region may be empty to use the environment's default.
func NewS3Store(ctx context.Context, bucket, prefix, region, runID string) (*S3Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "error loading AWS config")
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		runID:  runID,
	}, nil
}

func (s *S3Store) key(database, collection string) string {
	return path.Join(s.prefix, database, collection+".json")
}

func (s *S3Store) Load(ctx context.Context, database, collection string) (Position, bool, error) {
	downloader := manager.NewDownloader(s.client)
	buff := &manager.WriteAtBuffer{}

	_, err := downloader.Download(ctx, buff, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(database, collection)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			// Create the placeholder so later runs see an existing record.
			if err := s.put(ctx, database, collection, nil); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "error loading checkpoint for %s.%s", database, collection)
	}

	rec, err := decodeRecord(buff.Bytes())
	if err != nil {
		return nil, false, errors.Wrapf(err, "error decoding checkpoint for %s.%s", database, collection)
	}
	return rec.ResumeToken, true, nil
}

func (s *S3Store) Save(ctx context.Context, database, collection string, pos Position) error {
	return s.put(ctx, database, collection, pos)
}

func (s *S3Store) put(ctx context.Context, database, collection string, pos Position) error {
	body, err := encodeRecord(&Record{
		ResumeToken: pos,
		RunID:       s.runID,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrapf(err, "error encoding checkpoint for %s.%s", database, collection)
	}

	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(database, collection)),
		Body:   bytes.NewReader(body),
	})
	return errors.Wrapf(err, "error saving checkpoint for %s.%s", database, collection)
}

func (s *S3Store) Delete(ctx context.Context, database, collection string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(database, collection)),
	})
	return errors.Wrapf(err, "error deleting checkpoint for %s.%s", database, collection)
}

func (s *S3Store) Close() error {
	return nil
}

// encodeRecord renders the stable on-bucket layout: the resume token as
// base64 or null, plus writer bookkeeping.
func encodeRecord(rec *Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(body []byte) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
