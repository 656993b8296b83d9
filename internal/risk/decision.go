package risk

import "time"

// Action 表示决策结果动作。
type Action string

const (
	ActionTrade Action = "TRADE"
	ActionSkip  Action = "SKIP"
)

// ReasonCode 标识触发的风控规则，首个元素为对外展示的权威原因。
type ReasonCode string

const (
	ReasonDrawdownHalt ReasonCode = "DRAWDOWN_HALT"
	ReasonDailyLoss    ReasonCode = "DAILY_LOSS"
	ReasonMinEdge      ReasonCode = "MIN_EDGE"
	ReasonRateLimit    ReasonCode = "RATE_LIMIT"
	ReasonPositionCap  ReasonCode = "POSITION_CAP"
	ReasonExposureCap  ReasonCode = "EXPOSURE_CAP"
	ReasonNoEdge       ReasonCode = "NO_EDGE"
)

// Decision 为一次评估的最终输出。Vetoed 与 Halted 是正常业务结果而非错误。
type Decision struct {
	Symbol       string
	Action       Action
	SizeQuote    float64      // 计价货币下的下单金额
	SizeFraction float64      // 换算前的净值占比
	ReasonCodes  []ReasonCode // 按触发顺序记录的全部规则，含未拦截的缩减规则
	Vetoed       bool
	Halted       bool // 回撤熔断：在外部复位前所有后续决策都将被拒绝
	EvaluatedAt  time.Time
}

// FirstReason 返回权威原因码，未触发任何规则时返回空串。
func (d Decision) FirstReason() ReasonCode {
	if len(d.ReasonCodes) == 0 {
		return ""
	}
	return d.ReasonCodes[0]
}
