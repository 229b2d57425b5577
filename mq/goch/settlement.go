package goch

import (
	"billsplit/mq/mq"
)

// ChannelMessageQueue implements mq.MessageQueue with an in-process fan-out.
type ChannelMessageQueue[M mq.TopicProvider] struct {
	*fanOutQueueCore[M]
	action mq.Action
}

func NewChannelMessageQueue[M mq.TopicProvider](action mq.Action, bufferSize int) *ChannelMessageQueue[M] {
	return &ChannelMessageQueue[M]{
		fanOutQueueCore: newFanOutQueueCore[M](bufferSize),
		action:          action,
	}
}

func (q *ChannelMessageQueue[M]) GetAction() mq.Action {
	return q.action
}

type GoChanSettlementMessageQueueWrapper struct {
	OrderHistoryMQ    *ChannelMessageQueue[mq.OrderHistoryMessage]
	SettlementMQArray [mq.ActionCnt]*ChannelMessageQueue[mq.SettlementMessage]
}

func NewGoChanSettlementMessageQueueWrapper() mq.SettlementMessageQueueWrapper {
	wrapper := &GoChanSettlementMessageQueueWrapper{
		OrderHistoryMQ: NewChannelMessageQueue[mq.OrderHistoryMessage](mq.ActionUpdate, DefaultBufferSize),
	}
	for action := mq.ActionCreate; action < mq.ActionCnt; action++ {
		wrapper.SettlementMQArray[action] = NewChannelMessageQueue[mq.SettlementMessage](action, DefaultBufferSize)
	}
	return wrapper
}

func (wrapper *GoChanSettlementMessageQueueWrapper) GetOrderHistoryMessageQueue() mq.OrderHistoryMessageQueue {
	return wrapper.OrderHistoryMQ
}

func (wrapper *GoChanSettlementMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

func (wrapper *GoChanSettlementMessageQueueWrapper) Close() {
	wrapper.OrderHistoryMQ.Stop()
	for _, q := range wrapper.SettlementMQArray {
		q.Stop()
	}
}
