package main

import (
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

const (
	messageFailure = "Error processing file"
	messageSuccess = `File uploaded successfully to shared folder "%s"`
)

// S3ObjectInfo identifies the object one invocation copies. Key is decoded;
// RawKey is the value as it arrived in the notification.
type S3ObjectInfo struct {
	Bucket string
	Key    string
	RawKey string
}

// Outcome is what the handler returns to the Lambda runtime.
type Outcome struct {
	StatusCode int         `json:"statusCode"`
	Body       OutcomeBody `json:"body"`
}

type OutcomeBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func successOutcome(folder string) Outcome {
	return Outcome{
		StatusCode: 200,
		Body:       OutcomeBody{Message: fmt.Sprintf(messageSuccess, folder)},
	}
}

func failureOutcome(err error) Outcome {
	return Outcome{
		StatusCode: 500,
		Body:       OutcomeBody{Message: messageFailure, Error: err.Error()},
	}
}

// objectFromEvent takes the first record of the notification. Any further
// records are ignored.
//
// The runtime fills URLDecodedKey while unmarshaling the record and rejects
// a key with a malformed escape before the handler runs. Events built in
// code may leave it empty, in which case Key is decoded here.
func objectFromEvent(event events.S3Event) (S3ObjectInfo, error) {
	if len(event.Records) == 0 {
		return S3ObjectInfo{}, ErrNoRecords
	}

	record := event.Records[0]
	raw := record.S3.Object.Key

	key := record.S3.Object.URLDecodedKey
	if key == "" {
		var err error
		if key, err = url.QueryUnescape(raw); err != nil {
			return S3ObjectInfo{}, fmt.Errorf("decoding object key %q: %w", raw, err)
		}
	}

	return S3ObjectInfo{
		Bucket: record.S3.Bucket.Name,
		Key:    key,
		RawKey: raw,
	}, nil
}
