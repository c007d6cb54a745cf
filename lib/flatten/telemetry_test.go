package flatten

import (
	"context"
	"surveyflat/lib/testutil"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestRowCounters(t *testing.T) {
	tel := testutil.SetupTelemetry(t)
	ctx := context.Background()

	detailsBefore := tel.Counter(t, "surveyflat.rows", attribute.String("table", "details"))
	mergedBefore := tel.Counter(t, "surveyflat.rows", attribute.String("table", "merged"))

	details, err := FlattenDetails(ctx, "S1", []byte(singleChoiceDetails), DetailOptions{})
	require.NoError(t, err)
	responses, err := FlattenResponses(ctx, [][]byte{[]byte(singleAnswerResponses)}, ResponseOptions{})
	require.NoError(t, err)
	_, err = AnalysisJoin(ctx, details, responses)
	require.NoError(t, err)

	require.Equal(t, int64(2), tel.Counter(t, "surveyflat.rows", attribute.String("table", "details"))-detailsBefore)
	require.Equal(t, int64(1), tel.Counter(t, "surveyflat.rows", attribute.String("table", "merged"))-mergedBefore)

	names := tel.SpanNames()
	require.Contains(t, names, "FlattenDetails")
	require.Contains(t, names, "ResponseFlattener:AddPage")
	require.Contains(t, names, "ResponseFlattener:Table")
	require.Contains(t, names, "Join")
}
