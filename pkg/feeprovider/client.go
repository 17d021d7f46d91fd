package feeprovider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fortiblox/swapvm/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Client errors.
var (
	ErrNoEndpoint   = errors.New("fee provider endpoint is required")
	ErrNotConnected = errors.New("fee provider client not connected")
	ErrClosed       = errors.New("fee provider client closed")
	ErrBadResponse  = errors.New("malformed fee provider response")
)

// Default client configuration values.
const (
	DefaultCallTimeout      = 2 * time.Second
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 5 * time.Second
	DefaultMaxMessageSize   = 1 << 20
)

// ClientConfig holds the configuration for the fee provider client.
type ClientConfig struct {
	// Endpoint is the gRPC endpoint (e.g., "fees.example.com:443"). Required.
	Endpoint string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// CallTimeout bounds each fee resolution call. A fee call sits on the
	// swap path, so this should stay small.
	CallTimeout time.Duration

	// Keepalive configuration.
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:         endpoint,
		UseTLS:           false,
		CallTimeout:      DefaultCallTimeout,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		MaxMessageSize:   DefaultMaxMessageSize,
	}
}

// Validate checks the configuration.
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	return nil
}

// Client is a gRPC fee provider client. It implements vm.FeeSource.
type Client struct {
	config ClientConfig
	conn   *grpc.ClientConn
	closed atomic.Bool
}

// feeRequest is a placeholder for the gRPC GetFee request message.
// In production, this would be generated from the fee service proto
// files. We define it here to avoid dependency on proto generation.
type feeRequest struct {
	Provider []byte `protobuf:"bytes,1,opt,name=provider"`
	Order    []byte `protobuf:"bytes,2,opt,name=order"`
	Taker    []byte `protobuf:"bytes,3,opt,name=taker"`
}

func (x *feeRequest) Reset()         { *x = feeRequest{} }
func (x *feeRequest) String() string { return fmt.Sprintf("%+v", *x) }
func (x *feeRequest) ProtoMessage()  {}

// feeResponse is a placeholder for the gRPC GetFee response message.
type feeResponse struct {
	FeeBps    uint32 `protobuf:"varint,1,opt,name=fee_bps"`
	Recipient []byte `protobuf:"bytes,2,opt,name=recipient"`
}

func (x *feeResponse) Reset()         { *x = feeResponse{} }
func (x *feeResponse) String() string { return fmt.Sprintf("%+v", *x) }
func (x *feeResponse) ProtoMessage()  {}

const getFeeMethod = "/swapfee.FeeProvider/GetFee"

// NewClient creates and connects a fee provider client.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultCallTimeout
	}

	kacp := keepalive.ClientParameters{
		Time:                config.KeepaliveTime,
		Timeout:             config.KeepaliveTimeout,
		PermitWithoutStream: true,
	}
	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(kacp),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
			grpc.MaxCallSendMsgSize(config.MaxMessageSize),
		),
	}
	if config.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(
			credentials.NewTLS(&tls.Config{
				MinVersion: tls.VersionTLS12,
			}),
		))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	//nolint:staticcheck // Using Dial for compatibility with older gRPC versions
	conn, err := grpc.Dial(config.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gRPC: %w", err)
	}

	return &Client{config: config, conn: conn}, nil
}

// FeeFor resolves the fee rate and recipient for one swap. Implements
// vm.FeeSource.
func (c *Client) FeeFor(provider types.Address, order types.Hash, taker types.Address) (uint32, types.Address, error) {
	if c.closed.Load() {
		return 0, types.Address{}, ErrClosed
	}
	if c.conn == nil {
		return 0, types.Address{}, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CallTimeout)
	defer cancel()

	req := &feeRequest{
		Provider: provider.Bytes(),
		Order:    order.Bytes(),
		Taker:    taker.Bytes(),
	}
	resp := &feeResponse{}
	if err := c.conn.Invoke(ctx, getFeeMethod, req, resp); err != nil {
		return 0, types.Address{}, fmt.Errorf("fee call: %w", err)
	}

	recipient, err := types.AddressFromBytes(resp.Recipient)
	if err != nil {
		return 0, types.Address{}, fmt.Errorf("%w: recipient %x", ErrBadResponse, resp.Recipient)
	}
	return resp.FeeBps, recipient, nil
}

// Close tears down the connection. The client is unusable afterwards.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
