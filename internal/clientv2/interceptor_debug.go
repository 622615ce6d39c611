package clientv2

import (
	"net/http"
	"net/http/httptrace"
	"net/http/httputil"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/labsandbox/go-sdk/internal/log"
)

var (
	printRequestTrace   atomic.Bool
	printRequest        atomic.Bool
	printRequestDetail  atomic.Bool
	printResponse       atomic.Bool
	printResponseDetail atomic.Bool
)

func PrintRequestTrace(isPrint bool) {
	printRequestTrace.Store(isPrint)
}

func IsPrintRequestTrace() bool {
	return printRequestTrace.Load()
}

func PrintRequest(isPrint bool) {
	printRequest.Store(isPrint)
}

func IsPrintRequest() bool {
	return printRequest.Load()
}

// PrintRequestDetail 输出请求时包含请求体
func PrintRequestDetail(isPrint bool) {
	printRequestDetail.Store(isPrint)
}

func IsPrintRequestDetail() bool {
	return printRequestDetail.Load()
}

func PrintResponse(isPrint bool) {
	printResponse.Store(isPrint)
}

func IsPrintResponse() bool {
	return printResponse.Load()
}

// PrintResponseDetail 输出响应时包含响应体
func PrintResponseDetail(isPrint bool) {
	printResponseDetail.Store(isPrint)
}

func IsPrintResponseDetail() bool {
	return printResponseDetail.Load()
}

type debugInterceptor struct {
}

func newDebugInterceptor() Interceptor {
	return &debugInterceptor{}
}

func (r *debugInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityDebug
}

func (r *debugInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	label := r.requestLabel(req)

	if e := r.printRequest(label, req); e != nil {
		return nil, e
	}

	req = r.printRequestTrace(label, req)

	resp, err := handler(req)

	if e := r.printResponse(label, resp); e != nil {
		return nil, e
	}

	return resp, err
}

func (r *debugInterceptor) requestLabel(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.Method + " " + req.URL.String()
}

func (r *debugInterceptor) printRequest(label string, req *http.Request) error {
	printReq := IsPrintRequest()
	printReqDetail := IsPrintRequestDetail()
	if req == nil || (!printReq && !printReqDetail) {
		return nil
	}

	dump, err := httputil.DumpRequest(req, printReqDetail)
	if err != nil {
		return err
	}
	log.Debug("request", zap.String("label", label), zap.ByteString("dump", dump))
	return nil
}

func (r *debugInterceptor) printRequestTrace(label string, req *http.Request) *http.Request {
	if req == nil || !IsPrintRequestTrace() {
		return req
	}

	field := zap.String("label", label)
	trace := &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			log.Debug("GetConn", field, zap.String("hostPort", hostPort))
		},
		GotConn: func(connInfo httptrace.GotConnInfo) {
			remoteAddr := connInfo.Conn.RemoteAddr()
			log.Debug("GotConn", field, zap.String("network", remoteAddr.Network()), zap.String("remoteAddr", remoteAddr.String()), zap.Bool("reused", connInfo.Reused))
		},
		GotFirstResponseByte: func() {
			log.Debug("GotFirstResponseByte", field)
		},
		DNSStart: func(info httptrace.DNSStartInfo) {
			log.Debug("DNSStart", field, zap.String("host", info.Host))
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			log.Debug("DNSDone", field, zap.Any("addrs", info.Addrs), zap.Error(info.Err))
		},
		ConnectStart: func(network, addr string) {
			log.Debug("ConnectStart", field, zap.String("network", network), zap.String("addr", addr))
		},
		ConnectDone: func(network, addr string, err error) {
			log.Debug("ConnectDone", field, zap.String("network", network), zap.String("addr", addr), zap.Error(err))
		},
		TLSHandshakeStart: func() {
			log.Debug("TLSHandshakeStart", field)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			log.Debug("WroteRequest", field, zap.Error(info.Err))
		},
	}
	return req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
}

func (r *debugInterceptor) printResponse(label string, resp *http.Response) error {
	if resp == nil {
		return nil
	}

	printResp := IsPrintResponse()
	printRespDetail := IsPrintResponseDetail()
	if !printResp && !printRespDetail {
		return nil
	}

	dump, err := httputil.DumpResponse(resp, printRespDetail)
	if err != nil {
		return err
	}
	log.Debug("response", zap.String("label", label), zap.Int("status", resp.StatusCode), zap.ByteString("dump", dump))
	return nil
}
