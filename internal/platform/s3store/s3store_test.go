package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imglabel/internal/store"
)

// fakeClient keeps objects in a map and can be told to fail.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	getErr  error
	lastPut *s3.PutObjectInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput,
	_ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput,
	_ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestPutGet(t *testing.T) {
	client := newFakeClient()
	s := New(client, "images", nil)
	ctx := context.Background()

	assert.Equal(t, "images", s.Bucket())
	require.NoError(t, s.Put(ctx, "uploads/img1.jpeg", []byte("jpeg"), "image/jpeg"))
	assert.Equal(t, "image/jpeg", client.types["images/uploads/img1.jpeg"])
	assert.Equal(t, int64(4), aws.ToInt64(client.lastPut.ContentLength))

	got, err := s.Get(ctx, "uploads/img1.jpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)

	_, err = s.Get(ctx, "uploads/missing.jpeg")
	assert.ErrorIs(t, err, store.ErrObjectNotFound)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "typed not found", err: &types.NotFound{}, want: store.ErrObjectNotFound},
		{name: "archived", err: &types.InvalidObjectState{}, want: store.ErrObjectNotFound},
		{name: "no such bucket", err: &smithy.GenericAPIError{Code: "NoSuchBucket"}, want: store.ErrObjectNotFound},
		{name: "slow down", err: &smithy.GenericAPIError{Code: "SlowDown"}, want: store.ErrUnavailable},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: store.ErrUnavailable},
		{name: "network", err: errors.New("connection refused"), want: store.ErrUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newFakeClient()
			client.getErr = tc.err
			client.putErr = tc.err
			s := New(client, "images", nil)

			_, err := s.Get(context.Background(), "k")
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, s.Put(context.Background(), "k", nil, ""), tc.want)
		})
	}
}
