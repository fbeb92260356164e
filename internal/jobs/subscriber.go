package jobs

import (
	"sync"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
)

// subscriberBuffer 一个任务最多经历 PENDING、RUNNING、终态三次状态变化
const subscriberBuffer = 4

// jobSubscriber 单个任务的状态订阅
type jobSubscriber struct {
	jobID  string
	ch     chan model.GenerationJob
	mu     sync.Mutex
	closed bool
}

// trySend 非阻塞发送，订阅方处理过慢时丢弃中间状态
func (s *jobSubscriber) trySend(job model.GenerationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- job:
	default:
	}
}

func (s *jobSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
