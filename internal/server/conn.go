package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunquery/internal/planner"
	"github.com/kartikbazzad/bunbase/bunquery/internal/wire"
)

// Stage names the pipeline step a request failed in. They double as metric
// outcome labels.
const (
	stageOK     = "ok"
	stageDecode = "decode"
	stageParse  = "parse"
	stagePlan   = "plan"
	stageEval   = "eval"
)

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.release(conn)

	log := s.logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
	log.Debug("connection opened")

	metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	for {
		payload, err := wire.ReadFrame(conn, s.cfg.MaxFrameSize)
		if err != nil {
			switch {
			case errors.Is(err, wire.ErrFrameTooLarge):
				log.Warn("frame too large", "error", err, "limit", humanize.Bytes(uint64(s.cfg.MaxFrameSize)))
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				log.Debug("connection closed")
			default:
				log.Debug("connection closed", "error", err)
			}
			return
		}

		reply := s.handleFrame(ctx, log, payload)

		if err := wire.WriteFrame(conn, reply); err != nil {
			log.Debug("write failed", "error", err)
			return
		}
	}
}

// handleFrame runs one request through the pipeline and returns the encoded
// reply. It never fails: errors become {"error": message} replies.
func (s *Server) handleFrame(ctx context.Context, log *slog.Logger, payload []byte) []byte {
	start := time.Now()
	metrics.FrameBytes.WithLabelValues("in").Observe(float64(len(payload)))

	result, stage, err := s.execute(ctx, log, payload)
	if err != nil {
		log.Debug("request failed", "stage", stage, "error", err)
		result = errorReply(err)
	}
	reply := wire.Encode(result)

	elapsed := time.Since(start)
	metrics.FramesTotal.WithLabelValues(stage).Inc()
	metrics.RequestDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	metrics.FrameBytes.WithLabelValues("out").Observe(float64(len(reply)))

	log.Debug("request served",
		"stage", stage,
		"in", humanize.Bytes(uint64(len(payload))),
		"out", humanize.Bytes(uint64(len(reply))),
		"duration", elapsed,
	)
	return reply
}

func (s *Server) execute(ctx context.Context, log *slog.Logger, payload []byte) (ast.Datum, string, error) {
	value, err := wire.Decode(payload)
	if err != nil {
		return nil, stageDecode, err
	}

	term, err := s.parser.Parse(value)
	if err != nil {
		return nil, stageParse, err
	}

	p := planner.New()
	plan, err := p.Plan(term)
	if err != nil {
		return nil, stagePlan, err
	}

	plan = p.Optimize(plan)
	st := p.Stats()
	recordStats(st)
	log.Debug("plan",
		"explain", p.Explain(plan, 0),
		"visited", st.Visited,
		"filters_eliminated", st.FiltersEliminated,
		"filters_short_circuited", st.FiltersShortCircuited,
		"predicates_rewritten", st.PredicatesRewritten,
	)

	res, err := s.newEvaluator(s.backend).Eval(ctx, plan)
	if err != nil {
		return nil, stageEval, err
	}
	if res == nil || res.Result == nil {
		return ast.Null{}, stageOK, nil
	}
	return res.Result, stageOK, nil
}

func recordStats(st planner.Stats) {
	metrics.OptimizerTotal.WithLabelValues("visited").Add(float64(st.Visited))
	metrics.OptimizerTotal.WithLabelValues("filters_eliminated").Add(float64(st.FiltersEliminated))
	metrics.OptimizerTotal.WithLabelValues("filters_short_circuited").Add(float64(st.FiltersShortCircuited))
	metrics.OptimizerTotal.WithLabelValues("predicates_rewritten").Add(float64(st.PredicatesRewritten))
}

func errorReply(err error) ast.Datum {
	return ast.Object{{Key: "error", Value: ast.String(err.Error())}}
}
