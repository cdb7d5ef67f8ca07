package events

import amqp "github.com/rabbitmq/amqp091-go"

// Policy 队列满时的背压策略，配置里显式选择。
type Policy string

const (
	// PolicyDropOldest 丢掉队首最老的事件给新事件让位。
	PolicyDropOldest Policy = "drop_oldest"
	// PolicyBlock 阻塞调用方直到队列有空位。
	PolicyBlock Policy = "block"
)

// envelope 待发布的一条事件及其路由信息。
type envelope struct {
	stream  string // ack / trade / ticker
	payload interface{}
	headers amqp.Table
}

// queue 出口前的有界内存队列。publish 调用只做入队，
// 真正的网络发送由单独的消费协程完成。
type queue struct {
	ch     chan envelope
	policy Policy
	onDrop func(stream string)
}

func newQueue(size int, policy Policy, onDrop func(string)) *queue {
	if size <= 0 {
		size = 256
	}
	if policy == "" {
		policy = PolicyDropOldest
	}
	if onDrop == nil {
		onDrop = func(string) {}
	}
	return &queue{
		ch:     make(chan envelope, size),
		policy: policy,
		onDrop: onDrop,
	}
}

// put 入队一条事件。drop_oldest 策略下队列满时先弹出队首再重试一次，
// 仍满则丢弃新事件本身。
func (q *queue) put(e envelope) {
	if q.policy == PolicyBlock {
		q.ch <- e
		return
	}

	select {
	case q.ch <- e:
		return
	default:
	}

	select {
	case old := <-q.ch:
		q.onDrop(old.stream)
	default:
	}

	select {
	case q.ch <- e:
	default:
		q.onDrop(e.stream)
	}
}

func (q *queue) out() <-chan envelope {
	return q.ch
}

func (q *queue) close() {
	close(q.ch)
}
