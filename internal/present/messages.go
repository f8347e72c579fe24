package present

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Message keys are the English texts; English needs no entries of its own.
const (
	msgHintExchange        = "Select an exchange."
	msgHintPairNoExchange  = "Select an exchange first."
	msgHintPair            = "Select a trading pair."
	msgHintOrderEmpty      = "Enter the order ID (digits only)."
	msgHintOrderShort      = "The order ID needs at least %d digits (%d entered)."
	msgHintEvidence        = "Upload the order evidence file."
	msgHintEvidenceParsing = "Reading the evidence file..."
	msgHintEvidenceBad     = "The evidence file could not be read. Upload a JSON export from the exchange."
	msgHintEvidencePair    = "Select a trading pair to check the evidence."
	msgHintSKU             = "Select a product."
	msgHintEnvironment     = "Select an environment."
	msgHintPrincipalEmpty  = "Enter the principal amount."
	msgHintPrincipalBad    = "The principal must be a positive number."
	msgHintLeverageEmpty   = "Enter the leverage."
	msgHintLeverageBad     = "The leverage must be a positive number."

	msgStepExchange = "Choose exchange"
	msgStepPair     = "Choose trading pair"
	msgStepOrder    = "Enter order ID"
	msgStepEvidence = "Upload evidence"

	msgMismatchPairMissing  = "The evidence file does not contain a trading pair."
	msgMismatchPair         = "The evidence is for a different trading pair (%s)."
	msgMismatchInstType     = "The evidence instrument type (%s) does not match the selected pair (%s)."
	msgMismatchContractType = "The evidence contract type (%s) does not match the selected pair (%s)."

	msgErrEvidenceUnreadable = "The evidence file could not be read."
	msgErrFieldsMissing      = "Some required fields are missing or invalid."
	msgErrEvidenceMismatch   = "The evidence does not match your selection."
	msgErrCryptoUnavailable  = "Secure hashing is unavailable, so the request cannot be signed."
	msgErrUnauthorized       = "Your session has expired. Please sign in again."
	msgErrUpstream           = "The verification service returned an error (HTTP %d): %s"
	msgErrUnknown            = "Verification failed. Please try again."

	msgResultEligible   = "Eligible for liquidation cover."
	msgResultIneligible = "Not eligible for liquidation cover."
	msgResultStatus     = "Status: %s"
	msgResultQuote      = "Premium %s %s, payout %s %s"
	msgResultPolicy     = "Policy ID: %s"
	msgResultProcessed  = "Processed at %s"

	msgEvidenceFile         = "File: %s"
	msgEvidenceExchange     = "Exchange: %s"
	msgEvidencePair         = "Pair: %s"
	msgEvidenceInstType     = "Instrument type: %s"
	msgEvidenceContractType = "Contract type: %s"
	msgEvidenceNotFound     = "not found"

	msgWarnMissingPair   = "missing pair field"
	msgWarnReconstructed = "content was reconstructed from %d lines"

	msgTruncated = "[truncated]"
)

var zhHans = map[string]string{
	msgHintExchange:        "请选择交易所。",
	msgHintPairNoExchange:  "请先选择交易所。",
	msgHintPair:            "请选择交易对。",
	msgHintOrderEmpty:      "请输入订单号（仅限数字）。",
	msgHintOrderShort:      "订单号至少需要 %d 位数字（当前 %d 位）。",
	msgHintEvidence:        "请上传订单凭证文件。",
	msgHintEvidenceParsing: "正在读取凭证文件……",
	msgHintEvidenceBad:     "无法读取凭证文件，请上传交易所导出的 JSON 文件。",
	msgHintEvidencePair:    "请选择交易对以核对凭证。",
	msgHintSKU:             "请选择产品。",
	msgHintEnvironment:     "请选择环境。",
	msgHintPrincipalEmpty:  "请输入本金金额。",
	msgHintPrincipalBad:    "本金必须为正数。",
	msgHintLeverageEmpty:   "请输入杠杆倍数。",
	msgHintLeverageBad:     "杠杆倍数必须为正数。",

	msgStepExchange: "选择交易所",
	msgStepPair:     "选择交易对",
	msgStepOrder:    "填写订单号",
	msgStepEvidence: "上传凭证",

	msgMismatchPairMissing:  "凭证文件中没有交易对信息。",
	msgMismatchPair:         "凭证对应的是其他交易对（%s）。",
	msgMismatchInstType:     "凭证中的产品类型（%s）与所选交易对（%s）不一致。",
	msgMismatchContractType: "凭证中的合约类型（%s）与所选交易对（%s）不一致。",

	msgErrEvidenceUnreadable: "无法读取凭证文件。",
	msgErrFieldsMissing:      "部分必填项缺失或无效。",
	msgErrEvidenceMismatch:   "凭证与所选内容不一致。",
	msgErrCryptoUnavailable:  "安全哈希不可用，无法签署请求。",
	msgErrUnauthorized:       "登录已过期，请重新登录。",
	msgErrUpstream:           "验证服务返回错误（HTTP %d）：%s",
	msgErrUnknown:            "验证失败，请重试。",

	msgResultEligible:   "符合爆仓保障条件。",
	msgResultIneligible: "不符合爆仓保障条件。",
	msgResultStatus:     "状态：%s",
	msgResultQuote:      "保费 %s %s，赔付 %s %s",
	msgResultPolicy:     "保单号：%s",
	msgResultProcessed:  "处理时间：%s",

	msgEvidenceFile:         "文件：%s",
	msgEvidenceExchange:     "交易所：%s",
	msgEvidencePair:         "交易对：%s",
	msgEvidenceInstType:     "产品类型：%s",
	msgEvidenceContractType: "合约类型：%s",
	msgEvidenceNotFound:     "未找到",

	msgWarnMissingPair:   "缺少交易对字段",
	msgWarnReconstructed: "内容已由 %d 行重新拼接",

	msgTruncated: "[已截断]",
}

// Supported lists the languages with a message catalog, preferred first.
var Supported = []language.Tag{language.English, language.SimplifiedChinese}

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range zhHans {
		// SetString only fails for malformed tags.
		_ = b.SetString(language.SimplifiedChinese, key, text)
	}
	return b
}
