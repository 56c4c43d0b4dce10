package server

import (
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

// Преобразования между сетевыми моделями и запросами движка,
// общие для HTTP и gRPC.

func formulaRequest(in *models.ResolveRequest) engine.FormulaRequest {
	return engine.FormulaRequest{
		Formula:   in.Formula,
		Target:    in.Target,
		Values:    in.Values,
		Precision: in.Precision,
	}
}

func plotRequest(in *models.PlotRequest) engine.PlotRequest {
	return engine.PlotRequest{
		Functions: in.Functions,
		XMin:      in.XMin,
		XMax:      in.XMax,
		YMin:      in.YMin,
		YMax:      in.YMax,
	}
}

func resolveResponse(resp *engine.Response) models.ResolveResponse {
	res := resp.Formula
	return models.ResolveResponse{
		Formula: res.Formula,
		Target:  res.Target,
		Result:  res.Format(),
		Values:  res.Values,
	}
}

func solveResponse(resp *engine.Response) models.SolveResponse {
	return models.SolveResponse{Solution: resp.Solution, Result: resp.Solution.String()}
}
