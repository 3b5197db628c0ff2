// Package camundatest provides an in-memory job client for handler tests.
package camundatest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"google.golang.org/grpc"
)

// JobClient records the commands a handler sends instead of talking to a gateway.
type JobClient struct {
	gateway *gateway
}

func NewJobClient() *JobClient {
	return &JobClient{gateway: &gateway{}}
}

func noRetry(context.Context, error) bool { return false }

func (c *JobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, noRetry)
}

func (c *JobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, noRetry)
}

func (c *JobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, noRetry)
}

// Completed returns the variables of the single completed job, decoded into dst.
func (c *JobClient) Completed(dst interface{}) bool {
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()
	if len(c.gateway.completed) == 0 {
		return false
	}
	last := c.gateway.completed[len(c.gateway.completed)-1]
	return json.Unmarshal([]byte(last.Variables), dst) == nil
}

// Thrown returns the last BPMN error thrown, if any.
func (c *JobClient) Thrown() (*pb.ThrowErrorRequest, bool) {
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()
	if len(c.gateway.thrown) == 0 {
		return nil, false
	}
	return c.gateway.thrown[len(c.gateway.thrown)-1], true
}

// Failed returns the last fail-job request, if any.
func (c *JobClient) Failed() (*pb.FailJobRequest, bool) {
	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()
	if len(c.gateway.failed) == 0 {
		return nil, false
	}
	return c.gateway.failed[len(c.gateway.failed)-1], true
}

// gateway implements only the job-lifecycle RPCs; anything else panics through the nil embed.
type gateway struct {
	pb.GatewayClient

	mu        sync.Mutex
	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
}

func (g *gateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = append(g.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (g *gateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, in)
	return &pb.FailJobResponse{}, nil
}

func (g *gateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thrown = append(g.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}

// NewJob builds an activated job carrying vars as its variables.
func NewJob(key int64, jobType string, vars interface{}) entities.Job {
	payload := "{}"
	if vars != nil {
		data, err := json.Marshal(vars)
		if err != nil {
			panic(err)
		}
		payload = string(data)
	}
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               jobType,
		ProcessInstanceKey: key * 10,
		Retries:            3,
		Variables:          payload,
	}}
}
