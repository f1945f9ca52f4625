package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ BookSwapService = (*Service)(nil)
	_ LifecycleHook   = reputationCacheHook{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
