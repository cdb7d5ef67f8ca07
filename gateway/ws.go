package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/order"
)

// ErrNotConnected 未建立连接时调用任何收发方法返回。
var ErrNotConnected = errors.New("websocket not connected")

// Client 单条交易所连接。连接句柄进程独占：写路径始终经过 writeMu，
// 读路径只允许 listen 一个协程调用 Receive。
type Client struct {
	endpoint string
	dialer   *websocket.Dialer
	log      *logger.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewClient 创建客户端，endpoint 为空时由 network 决定。
func NewClient(network Network, log *logger.Logger) *Client {
	return &Client{
		endpoint: network.URL(),
		dialer:   websocket.DefaultDialer,
		log:      log,
	}
}

// Connect 建立 WebSocket 连接。
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	return nil
}

// Disconnect 发送 close 帧并关闭连接。
func (c *Client) Disconnect() error {
	c.writeMu.Lock()
	conn := c.conn
	c.conn = nil
	c.writeMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// Connected 报告连接是否仍然持有。
func (c *Client) Connected() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn != nil
}

// send 序列化并写出一条请求。同一时刻只有一个任务写 socket。
func (c *Client) send(method string, id *uint64, params interface{}) error {
	body, err := json.Marshal(request{Method: method, Params: params, ID: id})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.log.Debug("sending request", zap.String("method", method))
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// Receive 读取下一条入站消息。返回 (nil, nil) 表示收到了控制帧或
// 二进制帧，调用方直接继续读。ping 由底层自动回 pong。
func (c *Client) Receive() ([]byte, error) {
	c.writeMu.Lock()
	conn := c.conn
	c.writeMu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	mt, data, err := conn.ReadMessage()
	if err != nil {
		// 连接句柄保留：清理流程还要在同一条连接上发 cancel_session，
		// 真正的释放交给 Disconnect。
		return nil, fmt.Errorf("receive: %w", err)
	}
	if mt != websocket.TextMessage {
		return nil, nil
	}
	return data, nil
}

// AbortRead 让阻塞中的 Receive 立即超时返回。此后连接只可写不可读，
// 用于关停时先解除 listen 再走清理写路径。
func (c *Client) AbortRead() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.SetReadDeadline(time.Now())
}

// Ping 发送 WebSocket ping 帧。
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

// Login 用铸好的令牌登录，account 可选。
func (c *Client) Login(token string, account string, id uint64) error {
	params := map[string]interface{}{"token": token}
	if account != "" {
		params["account"] = account
	}
	return c.send("public/login", &id, params)
}

// Instruments 请求全部合约元数据。
func (c *Client) Instruments(id uint64) error {
	return c.send("public/instruments", &id, map[string]interface{}{})
}

// PublicSubscribe 订阅公共频道。
func (c *Client) PublicSubscribe(channels []string, id uint64) error {
	return c.send("public/subscribe", &id, map[string]interface{}{"channels": channels})
}

// PrivateSubscribe 订阅私有频道。
func (c *Client) PrivateSubscribe(channels []string, id uint64) error {
	return c.send("private/subscribe", &id, map[string]interface{}{"channels": channels})
}

// SetCancelOnDisconnect 连接断开 timeout 秒后由交易所自动撤单。
func (c *Client) SetCancelOnDisconnect(timeout time.Duration, id uint64) error {
	params := map[string]interface{}{"timeout_secs": int(timeout.Seconds())}
	return c.send("private/set_cancel_on_disconnect", &id, params)
}

// CancelSession 撤掉本会话的全部挂单。
func (c *Client) CancelSession(id uint64) error {
	return c.send("private/cancel_session", &id, map[string]interface{}{})
}

// Insert 发出限价/市价单。实现 order.Exchange。
func (c *Client) Insert(_ context.Context, req order.InsertRequest, id uint64) error {
	params := map[string]interface{}{
		"direction":       req.Side.String(),
		"instrument_name": req.Instrument,
		"client_order_id": req.ClientOrderID,
		"price":           req.Price,
		"amount":          req.Amount,
		"order_type":      req.Type.String(),
		"time_in_force":   req.TimeInForce.String(),
	}
	return c.send("private/insert", &id, params)
}

// Amend 修改已挂订单的价格与数量。
func (c *Client) Amend(_ context.Context, price, amount float64, clientOrderID, id uint64) error {
	params := map[string]interface{}{
		"client_order_id": clientOrderID,
		"price":           price,
		"amount":          amount,
	}
	return c.send("private/amend", &id, params)
}

// Cancel 按 client_order_id 撤单。
func (c *Client) Cancel(_ context.Context, clientOrderID, id uint64) error {
	params := map[string]interface{}{"client_order_id": clientOrderID}
	return c.send("private/cancel", &id, params)
}

var _ order.Exchange = (*Client)(nil)
